// Package app wires the client together: configuration, the logging router,
// the event bus, the procedural starfield, the sync client, and the
// fixed-rate tick loop that keeps the local world model fresh.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stardrift/client/config"
	"stardrift/client/eventbus"
	syncclient "stardrift/client/internal/net/client"
	"stardrift/client/logging"
	loggingSinks "stardrift/client/logging/sinks"
	"stardrift/client/spatial"
	"stardrift/client/starfield"
	"stardrift/client/telemetry"
)

// Options carry the command-line overrides applied on top of the config file.
type Options struct {
	ConfigPath string
	Identity   string
	Region     string
	ServerURL  string
}

// Run composes the client and blocks until the context is cancelled or an
// interrupt arrives.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Identity != "" {
		cfg.Server.Identity = opts.Identity
	}
	if opts.Region != "" {
		cfg.Server.Region = opts.Region
	}
	if opts.ServerURL != "" {
		cfg.Server.URL = opts.ServerURL
	}
	if cfg.Server.Identity == "" {
		cfg.Server.Identity = fmt.Sprintf("drifter-%06d", time.Now().UnixNano()%1_000_000)
	}

	router, jsonFile, err := buildRouter(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		router.Close(closeCtx)
		if jsonFile != nil {
			jsonFile.Close()
		}
	}()

	bus := eventbus.New(router)
	session := telemetry.NewSession()
	field := newSharedField(starfield.Config{
		Seed:             cfg.Starfield.Seed,
		CellSize:         cfg.Starfield.CellSize,
		BaseStarsPerCell: cfg.Starfield.BaseStarsPerCell,
		HubRadius:        cfg.Starfield.HubRadius,
		FalloffScale:     cfg.Starfield.FalloffScale,
		DensityFloor:     cfg.Starfield.DensityFloor,
		NebulaScale:      cfg.Starfield.NebulaScale,
		NebulaInfluence:  cfg.Starfield.NebulaInfluence,
		RegionDensity:    cfg.Starfield.RegionDensity,
	})

	engine := syncclient.New(syncclient.Config{
		ServerURL:         cfg.Server.URL,
		Identity:          cfg.Server.Identity,
		Region:            cfg.Server.Region,
		HeartbeatInterval: cfg.Derived.HeartbeatInterval,
		MissedPongLimit:   cfg.Sync.MissedPongLimit,
		BackoffBase:       cfg.Derived.BackoffBase,
		MaxAttempts:       cfg.Sync.MaxAttempts,
		QueueCap:          cfg.Sync.QueueCap,
		Smoothing:         cfg.Sync.Smoothing,
	}, syncclient.Options{
		Bus:       bus,
		Stars:     field,
		Metrics:   session,
		Publisher: router,
	})
	defer engine.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Connect(ctx); err != nil {
		// The backoff machine keeps retrying; the session just starts
		// offline.
		router.Publish(ctx, logging.Event{
			Type:     "app.initial_connect_failed",
			Severity: logging.SeverityWarn,
			Category: logging.CategoryNetwork,
			Payload:  err.Error(),
		})
	}

	runTicks(ctx, cfg, engine, field)

	if cfg.Telemetry.CSVPath != "" {
		if err := exportSession(session, cfg.Telemetry.CSVPath); err != nil {
			return fmt.Errorf("export session telemetry: %w", err)
		}
	}
	return nil
}

// runTicks drives the world model at the configured rate: grow and trim the
// starfield around the self position, decay gesture and twinkle state, and
// rebuild the spatial index.
func runTicks(ctx context.Context, cfg *config.Config, engine *syncclient.Client, field *sharedField) {
	extent := cfg.Spatial.Extent
	bounds := spatial.Bounds{X: -extent, Y: -extent, W: 2 * extent, H: 2 * extent}
	index := spatial.New(bounds, cfg.Spatial.Threshold, cfg.Spatial.MaxDepth)

	ticker := time.NewTicker(cfg.Derived.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			self := engine.Self()
			region := engine.Region()
			field.Step(self.X, self.Y, region,
				cfg.Starfield.GenerationRadius, cfg.Starfield.RetentionRadius, dt)
			engine.Advance(dt)
			rebuildIndex(index, engine, field)
		}
	}
}

// rebuildIndex repopulates the quadtree from scratch with entity and star
// handles. Rebuilding beats incremental updates at these population sizes.
func rebuildIndex(index *spatial.Quadtree, engine *syncclient.Client, field *sharedField) {
	index.Clear()
	for _, ent := range engine.Entities() {
		index.Insert(spatial.Point{X: ent.X, Y: ent.Y}, "entity:"+ent.ID)
	}
	field.View(func(gen *starfield.Generator) {
		for _, key := range gen.Keys() {
			for _, star := range gen.Cell(key) {
				index.Insert(spatial.Point{X: star.X, Y: star.Y}, "star:"+star.ID())
			}
		}
	})
}

func exportSession(session *telemetry.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return session.WriteCSV(f)
}

// sharedField serializes generator access between the tick loop and the sync
// client's read goroutine.
type sharedField struct {
	mu  sync.Mutex
	gen *starfield.Generator
}

func newSharedField(cfg starfield.Config) *sharedField {
	return &sharedField{gen: starfield.NewGenerator(cfg)}
}

// IgniteID satisfies the sync client's star overlay hook.
func (f *sharedField) IgniteID(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen.IgniteID(id)
}

// Step grows the neighborhood, trims far cells, and advances twinkle state.
func (f *sharedField) Step(x, y float64, region string, genRadius, retainRadius int, dt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen.EnsureRadius(x, y, region, genRadius)
	f.gen.EvictBeyond(x, y, region, retainRadius)
	f.gen.AdvanceTwinkle(dt)
}

// View runs fn with the generator under the field lock.
func (f *sharedField) View(fn func(*starfield.Generator)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.gen)
}

func buildRouter(cfg *config.Config) (*logging.Router, *os.File, error) {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.Logging.Sinks
	if cfg.Logging.BufferSize > 0 {
		logCfg.BufferSize = cfg.Logging.BufferSize
	}
	logCfg.MinimumSeverity = parseSeverity(cfg.Logging.MinimumSeverity)
	logCfg.Fields = map[string]any{"identity": cfg.Server.Identity}

	var named []logging.NamedSink
	var jsonFile *os.File
	if logCfg.HasSink("console") {
		named = append(named, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console),
		})
	}
	if logCfg.HasSink("json") && cfg.Logging.JSONPath != "" {
		f, err := os.OpenFile(cfg.Logging.JSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open json log: %w", err)
		}
		jsonFile = f
		named = append(named, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(f, logCfg.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(nil, logCfg, named)
	if err != nil {
		if jsonFile != nil {
			jsonFile.Close()
		}
		return nil, nil, fmt.Errorf("construct logging router: %w", err)
	}
	return router, jsonFile, nil
}

func parseSeverity(name string) logging.Severity {
	switch name {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
