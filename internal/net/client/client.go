// Package client implements the sync engine: one websocket session to the
// stardrift server, an entity table reconciled from authoritative snapshots,
// and automatic reconnection with exponential backoff. Consumers observe the
// session through the event bus and the snapshot accessors; they never touch
// the wire.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"stardrift/client/eventbus"
	"stardrift/client/internal/net/proto"
	"stardrift/client/logging"
	"stardrift/client/logging/network"
	"stardrift/client/telemetry"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("client: closed")
	// ErrAlreadyStarted is returned by Connect when a session is active.
	ErrAlreadyStarted = errors.New("client: already started")
)

// Config tunes the session. Zero values fall back to defaults.
type Config struct {
	ServerURL         string
	Identity          string
	Region            string
	HeartbeatInterval time.Duration
	MissedPongLimit   int
	BackoffBase       time.Duration
	MaxAttempts       int
	QueueCap          int
	Smoothing         float64
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.MissedPongLimit <= 0 {
		c.MissedPongLimit = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 100
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = 0.3
	}
}

// Options carries the collaborators. Every field is optional except Bus in
// practice; nil fields degrade to inert defaults.
type Options struct {
	Dialer    Dialer
	Bus       *eventbus.Bus
	Stars     StarIgniter
	Metrics   *telemetry.Session
	Publisher logging.Publisher
	Clock     func() time.Time
}

// Client is the sync engine. All exported methods are safe for concurrent use.
type Client struct {
	cfg     Config
	dialer  Dialer
	bus     *eventbus.Bus
	stars   StarIgniter
	metrics *telemetry.Session
	pub     logging.Publisher
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          ConnectionState
	closed         bool
	conn           Conn
	queue          *outboundQueue
	attempt        int
	scheduled      []time.Duration
	reconnectTimer *time.Timer
	stopHeartbeat  chan struct{}
	missedPongs    int
	latency        time.Duration
	region         string
	linkedCount    int
	entities       map[string]*Entity
	echoes         map[string]*Echo
	friends        map[string]string
	cooldowns      map[string]time.Time
	profile        Profile
}

// New constructs a client. It does not connect.
func New(cfg Config, opts Options) *Client {
	cfg.applyDefaults()
	if opts.Dialer == nil {
		opts.Dialer = newWSDialer()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New(opts.Publisher)
	}
	if opts.Publisher == nil {
		opts.Publisher = logging.NopPublisher()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:       cfg,
		dialer:    opts.Dialer,
		bus:       opts.Bus,
		stars:     opts.Stars,
		metrics:   opts.Metrics,
		pub:       opts.Publisher,
		now:       opts.Clock,
		ctx:       ctx,
		cancel:    cancel,
		queue:     newOutboundQueue(cfg.QueueCap),
		region:    cfg.Region,
		entities:  make(map[string]*Entity),
		echoes:    make(map[string]*Echo),
		friends:   make(map[string]string),
		cooldowns: make(map[string]time.Time),
	}
}

func (c *Client) actorRef() logging.EntityRef {
	return logging.EntityRef{ID: c.cfg.Identity, Kind: logging.EntityKindSession}
}

func (c *Client) announceState(from, to ConnectionState) {
	network.StateChanged(c.ctx, c.pub, c.actorRef(), network.StatePayload{
		From: from.String(),
		To:   to.String(),
	})
	c.bus.Publish(TopicStateChanged, StateChange{From: from, To: to})
}

// Connect dials the server and starts the session. On dial failure the
// backoff machine takes over; the error reports the first attempt only.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateConnecting
	c.attempt = 0
	c.mu.Unlock()
	c.announceState(StateDisconnected, StateConnecting)
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	endpoint, err := endpointURL(c.cfg.ServerURL, c.cfg.Identity, c.region)
	if err != nil {
		// A malformed URL never becomes dialable; settle so Connect can
		// be retried instead of staying stuck in Connecting.
		from := c.state
		c.state = StateDisconnected
		c.mu.Unlock()
		if from != StateDisconnected {
			c.announceState(from, StateDisconnected)
		}
		return err
	}
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	from := c.state
	c.state = StateConnected
	c.conn = conn
	c.attempt = 0
	c.missedPongs = 0
	stop := make(chan struct{})
	c.stopHeartbeat = stop
	pending := c.queue.drain()
	c.mu.Unlock()

	c.announceState(from, StateConnected)

	for i, entry := range pending {
		if err := conn.WriteMessage(entry.frame); err != nil {
			c.mu.Lock()
			c.queue.requeue(pending[i:])
			c.mu.Unlock()
			c.transportLost(conn)
			return nil
		}
	}

	go c.readLoop(conn)
	go c.heartbeatLoop(conn, stop)
	return nil
}

// backoffDelay is the pure backoff curve: base doubled per attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	return base << uint(attempt)
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	from := c.state
	if c.attempt >= c.cfg.MaxAttempts {
		c.state = StateDisconnected
		c.mu.Unlock()
		if from != StateDisconnected {
			c.announceState(from, StateDisconnected)
		}
		return
	}
	delay := backoffDelay(c.cfg.BackoffBase, c.attempt)
	attempt := c.attempt
	c.attempt++
	c.scheduled = append(c.scheduled, delay)
	c.state = StateReconnecting
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	c.metrics.IncrReconnect()
	if from != StateReconnecting {
		c.announceState(from, StateReconnecting)
	}
	network.ReconnectScheduled(c.ctx, c.pub, c.actorRef(), network.ReconnectPayload{
		Attempt: attempt,
		DelayMs: delay.Milliseconds(),
	})
}

func (c *Client) redial() {
	c.mu.Lock()
	if c.closed || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.announceState(StateReconnecting, StateConnecting)
	c.dial(c.ctx)
}

// transportLost tears down the active conn and arms a reconnect. Stale calls
// referring to an already replaced conn are ignored.
func (c *Client) transportLost(conn Conn) {
	c.mu.Lock()
	if c.closed || conn != c.conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	c.mu.Unlock()
	conn.Close()
	c.scheduleReconnect()
}

func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.transportLost(conn)
			return
		}
		c.metrics.RecordBytesReceived(len(data))
		msg, err := proto.DecodeServerMessage(data)
		if err != nil {
			c.metrics.IncrProtocolError()
			network.ProtocolError(c.ctx, c.pub, c.actorRef(), network.ProtocolErrorPayload{
				Reason: err.Error(),
			})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) heartbeatLoop(conn Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.heartbeatTick(conn) {
				return
			}
		}
	}
}

// heartbeatTick sends one ping, or tears the conn down once the missed-pong
// limit is reached. Returns false when the loop should stop.
func (c *Client) heartbeatTick(conn Conn) bool {
	c.mu.Lock()
	if c.closed || conn != c.conn {
		c.mu.Unlock()
		return false
	}
	if c.missedPongs >= c.cfg.MissedPongLimit {
		missed := c.missedPongs
		c.mu.Unlock()
		network.HeartbeatTimeout(c.ctx, c.pub, c.actorRef(), missed)
		c.transportLost(conn)
		return false
	}
	c.missedPongs++
	c.mu.Unlock()

	now := c.now().UnixMilli()
	frame, err := proto.EncodeClientMessage(proto.TypePing, proto.Ping{Timestamp: now}, now)
	if err != nil {
		return true
	}
	if err := conn.WriteMessage(frame); err != nil {
		c.transportLost(conn)
		return false
	}
	return true
}

// Send frames an intent. Connected: written immediately. Otherwise the frame
// waits in the bounded queue and is flushed oldest first on reconnect; Send
// never fails just because the link is down.
func (c *Client) Send(msgType string, data any) error {
	frame, err := proto.EncodeClientMessage(msgType, data, c.now().UnixMilli())
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected && c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		if err := conn.WriteMessage(frame); err != nil {
			c.mu.Lock()
			c.queue.push(frame, msgType)
			c.mu.Unlock()
			c.transportLost(conn)
		}
		return nil
	}
	dropped, droppedType := c.queue.push(frame, msgType)
	c.mu.Unlock()

	if dropped {
		c.metrics.IncrQueueDrop()
		network.QueueOverflow(c.ctx, c.pub, c.actorRef(), droppedType)
	}
	return nil
}

// Close tears the session down synchronously: reconnect timer stopped,
// heartbeat stopped, conn closed. No bus or log callbacks fire afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	conn := c.conn
	c.conn = nil
	from := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if from != StateDisconnected {
		c.announceState(from, StateDisconnected)
	}
	c.cancel()
	if conn != nil {
		conn.Close()
	}
	return nil
}

// State reports the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latency reports the most recent heartbeat round trip.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// LinkedCount reports the server-published connected population.
func (c *Client) LinkedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linkedCount
}

// Region reports the region the session is (or will be) attached to.
func (c *Client) Region() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// QueueLen reports how many intents wait for a connection.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Profile returns the authoritative account snapshot.
func (c *Client) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Entities returns value copies of every reconciled entity, self included.
func (c *Client) Entities() []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entity, 0, len(c.entities))
	for _, ent := range c.entities {
		out = append(out, *ent)
	}
	return out
}

// Entity returns a value copy of one entity by id.
func (c *Client) Entity(id string) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *ent, true
}

// Self returns the client-owned entity, creating it on first use.
func (c *Client) Self() Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.ensureSelfLocked()
}

// Echoes returns value copies of the persisted world echoes.
func (c *Client) Echoes() []Echo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Echo, 0, len(c.echoes))
	for _, echo := range c.echoes {
		out = append(out, *echo)
	}
	return out
}

// Friends returns the id -> name friend map.
func (c *Client) Friends() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.friends))
	for id, name := range c.friends {
		out[id] = name
	}
	return out
}

// CooldownRemaining reports how long an action stays rejected, zero when free.
func (c *Client) CooldownRemaining(action string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.cooldowns[action]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Client) ensureSelfLocked() *Entity {
	ent, ok := c.entities[c.cfg.Identity]
	if !ok {
		ent = &Entity{ID: c.cfg.Identity, Self: true}
		c.entities[c.cfg.Identity] = ent
	}
	return ent
}

// SetSelfPosition moves the client-owned entity and publishes the movement
// intent. The server never overrides this position through snapshots.
func (c *Client) SetSelfPosition(x, y float64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	self := c.ensureSelfLocked()
	self.X = x
	self.Y = y
	hue := self.Hue
	c.mu.Unlock()
	return c.Send(proto.TypePlayerUpdate, proto.PlayerUpdate{X: x, Y: y, Hue: hue})
}

// Sing broadcasts the sing gesture. No local effect until the server echoes it.
func (c *Client) Sing() error {
	self := c.Self()
	return c.Send(proto.TypeSing, proto.Sing{X: self.X, Y: self.Y})
}

// Pulse broadcasts the pulse gesture.
func (c *Client) Pulse() error {
	self := c.Self()
	return c.Send(proto.TypePulse, proto.Pulse{X: self.X, Y: self.Y})
}

// Emote broadcasts a glyph gesture.
func (c *Client) Emote(glyph string) error {
	return c.Send(proto.TypeEmote, proto.Emote{Glyph: glyph})
}

// PlaceEcho asks the server to persist a text echo at the self position.
func (c *Client) PlaceEcho(text string) error {
	self := c.Self()
	return c.Send(proto.TypeEcho, proto.Echo{X: self.X, Y: self.Y, Text: text})
}

// IgniteEcho asks the server to ignite an echo.
func (c *Client) IgniteEcho(echoID string) error {
	return c.Send(proto.TypeEchoIgnite, proto.EchoIgnite{EchoID: echoID})
}

// LightStar asks the server to ignite a star. The local star only lights when
// the authoritative broadcast returns.
func (c *Client) LightStar(starID string) error {
	return c.Send(proto.TypeStarLit, proto.StarLit{StarID: starID})
}

// Whisper sends directed (to set) or broadcast text.
func (c *Client) Whisper(to, text string) error {
	return c.Send(proto.TypeWhisper, proto.Whisper{To: to, Text: text})
}

// SendVoiceSignal relays an opaque peer negotiation payload.
func (c *Client) SendVoiceSignal(to string, payload []byte) error {
	return c.Send(proto.TypeVoiceSignal, proto.VoiceSignal{To: to, Payload: payload})
}

// Advance decays gesture timers. Called once per render tick.
func (c *Client) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ent := range c.entities {
		ent.SingTimer = decay(ent.SingTimer, dt)
		ent.PulseTimer = decay(ent.PulseTimer, dt)
		ent.EmoteTimer = decay(ent.EmoteTimer, dt)
		if ent.EmoteTimer == 0 {
			ent.EmoteGlyph = ""
		}
	}
}

func decay(timer, dt float64) float64 {
	timer -= dt
	if timer < 0 {
		return 0
	}
	return timer
}
