// Package telemetry collects per-session counters for the sync engine and the
// connectivity indicator: reconciliation volume, protocol errors, queue
// drops, reconnects, and round-trip latency quantiles.
package telemetry

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

const defaultRTTWindow = 256

// Session aggregates counters for one client session. All methods are safe
// for concurrent use and safe on a nil receiver, so call sites never guard.
type Session struct {
	snapshotsApplied   atomic.Uint64
	entitiesReconciled atomic.Uint64
	entitiesRemoved    atomic.Uint64
	bytesReceived      atomic.Uint64
	protocolErrors     atomic.Uint64
	queueDrops         atomic.Uint64
	reconnects         atomic.Uint64
	startedAt          time.Time

	mu     sync.Mutex
	rtts   []float64
	rttIdx int
	rttLen int
}

// NewSession constructs a session window with the default RTT sample size.
func NewSession() *Session {
	return &Session{
		startedAt: time.Now(),
		rtts:      make([]float64, defaultRTTWindow),
	}
}

// RecordSnapshot counts one applied snapshot and its reconciled entities.
func (s *Session) RecordSnapshot(entities, removed int) {
	if s == nil {
		return
	}
	s.snapshotsApplied.Add(1)
	if entities > 0 {
		s.entitiesReconciled.Add(uint64(entities))
	}
	if removed > 0 {
		s.entitiesRemoved.Add(uint64(removed))
	}
}

// RecordBytesReceived counts raw inbound frame bytes.
func (s *Session) RecordBytesReceived(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.bytesReceived.Add(uint64(n))
}

// RecordRTT stores one heartbeat round trip in the sliding window.
func (s *Session) RecordRTT(rtt time.Duration) {
	if s == nil || rtt < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtts[s.rttIdx] = float64(rtt.Milliseconds())
	s.rttIdx = (s.rttIdx + 1) % len(s.rtts)
	if s.rttLen < len(s.rtts) {
		s.rttLen++
	}
}

// IncrProtocolError counts one malformed or unknown inbound message.
func (s *Session) IncrProtocolError() {
	if s == nil {
		return
	}
	s.protocolErrors.Add(1)
}

// IncrQueueDrop counts one outbound message discarded on overflow.
func (s *Session) IncrQueueDrop() {
	if s == nil {
		return
	}
	s.queueDrops.Add(1)
}

// IncrReconnect counts one scheduled reconnect attempt.
func (s *Session) IncrReconnect() {
	if s == nil {
		return
	}
	s.reconnects.Add(1)
}

// Snapshot captures the current counter values and RTT quantiles.
type Snapshot struct {
	SnapshotsApplied   uint64  `csv:"snapshots_applied" json:"snapshotsApplied"`
	EntitiesReconciled uint64  `csv:"entities_reconciled" json:"entitiesReconciled"`
	EntitiesRemoved    uint64  `csv:"entities_removed" json:"entitiesRemoved"`
	BytesReceived      uint64  `csv:"bytes_received" json:"bytesReceived"`
	ProtocolErrors     uint64  `csv:"protocol_errors" json:"protocolErrors"`
	QueueDrops         uint64  `csv:"queue_drops" json:"queueDrops"`
	Reconnects         uint64  `csv:"reconnects" json:"reconnects"`
	RTTSamples         int     `csv:"rtt_samples" json:"rttSamples"`
	RTTP50Millis       float64 `csv:"rtt_p50_ms" json:"rttP50Ms"`
	RTTP95Millis       float64 `csv:"rtt_p95_ms" json:"rttP95Ms"`
	UptimeSeconds      float64 `csv:"uptime_seconds" json:"uptimeSeconds"`
}

// Snapshot renders the counters. RTT quantiles are zero until a sample lands.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		SnapshotsApplied:   s.snapshotsApplied.Load(),
		EntitiesReconciled: s.entitiesReconciled.Load(),
		EntitiesRemoved:    s.entitiesRemoved.Load(),
		BytesReceived:      s.bytesReceived.Load(),
		ProtocolErrors:     s.protocolErrors.Load(),
		QueueDrops:         s.queueDrops.Load(),
		Reconnects:         s.reconnects.Load(),
	}
	if !s.startedAt.IsZero() {
		snap.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}

	s.mu.Lock()
	samples := make([]float64, s.rttLen)
	copy(samples, s.rtts[:s.rttLen])
	s.mu.Unlock()

	snap.RTTSamples = len(samples)
	if len(samples) > 0 {
		sort.Float64s(samples)
		snap.RTTP50Millis = stat.Quantile(0.5, stat.Empirical, samples, nil)
		snap.RTTP95Millis = stat.Quantile(0.95, stat.Empirical, samples, nil)
	}
	return snap
}

// WriteCSV appends the current snapshot as one CSV record with a header row.
func (s *Session) WriteCSV(w io.Writer) error {
	snap := s.Snapshot()
	records := []*Snapshot{&snap}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("write session csv: %w", err)
	}
	return nil
}
