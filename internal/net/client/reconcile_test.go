package client

import (
	"math"
	"sync"
	"testing"
	"time"

	"stardrift/client/eventbus"
	"stardrift/client/internal/net/proto"
)

type recordingIgniter struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingIgniter) IgniteID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true
}

func newReconcileClient(t *testing.T) (*Client, *eventbus.Bus, *recordingIgniter) {
	t.Helper()
	bus := eventbus.New(nil)
	igniter := &recordingIgniter{}
	now := time.UnixMilli(1_700_000_000_000)
	c := New(testClientConfig(), Options{
		Dialer: &fakeDialer{},
		Bus:    bus,
		Stars:  igniter,
		Clock:  func() time.Time { return now },
	})
	t.Cleanup(func() { c.Close() })
	return c, bus, igniter
}

func snapshotOf(entities ...proto.EntityState) proto.WorldState {
	return proto.WorldState{Entities: entities, Timestamp: 1}
}

func TestSnapshotInsertsUnknownEntitiesExactly(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 40, Y: -8, Hue: 120, Level: 3}))

	ent, ok := c.Entity("p2")
	if !ok {
		t.Fatalf("expected p2 inserted")
	}
	if ent.X != 40 || ent.Y != -8 {
		t.Fatalf("first sighting must land exactly, got (%f, %f)", ent.X, ent.Y)
	}
	if ent.Hue != 120 || ent.Level != 3 {
		t.Fatalf("non-positional fields not applied: %+v", ent)
	}
}

func TestSnapshotBlendsKnownPositions(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 0, Y: 0}))
	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 10, Y: 20}))

	ent, _ := c.Entity("p2")
	if math.Abs(ent.X-3) > 1e-9 || math.Abs(ent.Y-6) > 1e-9 {
		t.Fatalf("expected 30%% blend toward remote, got (%f, %f)", ent.X, ent.Y)
	}
}

func TestSnapshotConvergesToRemotePosition(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 0, Y: 0}))
	for i := 0; i < 80; i++ {
		c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 500, Y: -500}))
	}

	ent, _ := c.Entity("p2")
	if math.Abs(ent.X-500) > 1e-6 || math.Abs(ent.Y+500) > 1e-6 {
		t.Fatalf("repeated snapshots must converge, got (%f, %f)", ent.X, ent.Y)
	}
}

func TestSnapshotRemovesAbsentEntities(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.SetSelfPosition(1, 1)

	c.handleMessage(snapshotOf(
		proto.EntityState{ID: "p2", X: 1},
		proto.EntityState{ID: "p3", X: 2},
	))
	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 1}))

	if _, ok := c.Entity("p3"); ok {
		t.Fatalf("absence from the snapshot must remove the entity")
	}
	if _, ok := c.Entity("p2"); !ok {
		t.Fatalf("present entity must survive")
	}
	if _, ok := c.Entity("p1"); !ok {
		t.Fatalf("self must never be removed by a snapshot")
	}
}

func TestSnapshotNeverMovesSelf(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.SetSelfPosition(5, 6)

	c.handleMessage(snapshotOf(proto.EntityState{
		ID: "p1", X: 900, Y: 900, XP: 50, Level: 2, UpdatedAt: 10,
	}))

	self := c.Self()
	if self.X != 5 || self.Y != 6 {
		t.Fatalf("self position is client-owned, got (%f, %f)", self.X, self.Y)
	}
	if self.XP != 50 || self.Level != 2 {
		t.Fatalf("self progression must merge from snapshots: %+v", self)
	}

	// A stale snapshot cannot roll progression back.
	c.handleMessage(snapshotOf(proto.EntityState{ID: "p1", XP: 1, Level: 1, UpdatedAt: 3}))
	if self = c.Self(); self.XP != 50 || self.Level != 2 {
		t.Fatalf("stale snapshot rolled progression back: %+v", self)
	}
}

func TestSnapshotSummaryPublished(t *testing.T) {
	c, bus, _ := newReconcileClient(t)

	var got SnapshotSummary
	bus.Subscribe(TopicSnapshotApplied, func(payload any) {
		got = payload.(SnapshotSummary)
	})

	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2"}))
	c.handleMessage(proto.WorldState{
		Entities:    []proto.EntityState{{ID: "p4"}},
		LinkedCount: 12,
		Timestamp:   77,
	})

	if got.Entities != 1 || got.Removed != 1 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.LinkedCount != 12 || got.Timestamp != 77 {
		t.Fatalf("summary must carry snapshot metadata: %+v", got)
	}
	if c.LinkedCount() != 12 {
		t.Fatalf("linked count not retained")
	}
}

func TestStarLitReachesIgniter(t *testing.T) {
	c, bus, igniter := newReconcileClient(t)

	var published []string
	bus.Subscribe(TopicStarLit, func(payload any) {
		published = append(published, payload.(proto.StarLit).StarID)
	})

	c.handleMessage(proto.StarLit{From: "p2", StarID: "genesis:0:0:3"})
	c.handleMessage(proto.WorldState{LitStars: []string{"genesis:1:1:0", "genesis:1:1:1"}})

	igniter.mu.Lock()
	ids := append([]string(nil), igniter.ids...)
	igniter.mu.Unlock()
	if len(ids) != 3 {
		t.Fatalf("expected 3 ignitions, got %v", ids)
	}
	if len(published) != 1 || published[0] != "genesis:0:0:3" {
		t.Fatalf("expected one star_lit event, got %v", published)
	}
}

func TestOwnStarLitIncrementsProfile(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.handleMessage(proto.StarLit{From: "p1", StarID: "genesis:0:0:0"})
	c.handleMessage(proto.StarLit{From: "p2", StarID: "genesis:0:0:1"})
	if got := c.Profile().StarsLit; got != 1 {
		t.Fatalf("expected one own ignition counted, got %d", got)
	}
}

func TestGestureArmsDisplayTimerAndDecays(t *testing.T) {
	c, bus, _ := newReconcileClient(t)
	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2"}))

	var gestures int
	bus.Subscribe(TopicSing, func(any) { gestures++ })
	bus.Subscribe(TopicEmote, func(any) { gestures++ })

	c.handleMessage(proto.Sing{From: "p2"})
	c.handleMessage(proto.Emote{From: "p2", Glyph: "~"})

	ent, _ := c.Entity("p2")
	if ent.SingTimer != singDuration {
		t.Fatalf("sing timer not armed: %f", ent.SingTimer)
	}
	if ent.EmoteGlyph != "~" || ent.EmoteTimer != emoteDuration {
		t.Fatalf("emote not armed: %+v", ent)
	}
	if gestures != 2 {
		t.Fatalf("expected 2 gesture events, got %d", gestures)
	}

	c.Advance(emoteDuration + 0.5)
	ent, _ = c.Entity("p2")
	if ent.SingTimer != 0 || ent.EmoteTimer != 0 || ent.EmoteGlyph != "" {
		t.Fatalf("gesture state must decay: %+v", ent)
	}
}

func TestCooldownTracked(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.handleMessage(proto.Cooldown{Action: "sing", RemainingMs: 1500})
	if got := c.CooldownRemaining("sing"); got != 1500*time.Millisecond {
		t.Fatalf("expected 1500ms cooldown, got %v", got)
	}
	if got := c.CooldownRemaining("pulse"); got != 0 {
		t.Fatalf("unknown action must be free, got %v", got)
	}
}

func TestPlayerDataFreshestWins(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(proto.PlayerData{
		ID: "p1", Name: "nova", XP: 200, Level: 4,
		Friends: []string{"p2"}, UpdatedAt: 100,
	})
	c.handleMessage(proto.PlayerData{
		ID: "p1", Name: "old", XP: 10, Level: 1, UpdatedAt: 40,
	})

	profile := c.Profile()
	if profile.Name != "nova" || profile.XP != 200 || profile.Level != 4 {
		t.Fatalf("stale player_data must lose: %+v", profile)
	}
	if _, ok := c.Friends()["p2"]; !ok {
		t.Fatalf("friend list not applied")
	}

	self := c.Self()
	if self.Name != "nova" || self.XP != 200 {
		t.Fatalf("profile must flow into the self entity: %+v", self)
	}
}

func TestXPGainUpdatesProgression(t *testing.T) {
	c, bus, _ := newReconcileClient(t)

	var leveled bool
	bus.Subscribe(TopicXPGain, func(payload any) {
		leveled = payload.(proto.XPGain).LeveledUp
	})

	c.handleMessage(proto.XPGain{Amount: 25, NewXP: 125, NewLevel: 3, LeveledUp: true})

	if p := c.Profile(); p.XP != 125 || p.Level != 3 {
		t.Fatalf("xp_gain not applied: %+v", p)
	}
	if self := c.Self(); self.XP != 125 || self.Level != 3 {
		t.Fatalf("xp_gain must reach the self entity: %+v", self)
	}
	if !leveled {
		t.Fatalf("level-up flag lost on republication")
	}
}

func TestXPGainSurvivesStaleSnapshot(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(proto.WorldState{
		Entities:  []proto.EntityState{{ID: "p1", XP: 100, Level: 1, UpdatedAt: 5}},
		Timestamp: 5,
	})
	c.handleMessage(proto.XPGain{Amount: 50, NewXP: 150, NewLevel: 2, Timestamp: 10})

	// A snapshot assembled before the gain arrives after it.
	c.handleMessage(proto.WorldState{
		Entities:  []proto.EntityState{{ID: "p1", XP: 100, Level: 1, UpdatedAt: 6}},
		Timestamp: 6,
	})
	if self := c.Self(); self.XP != 150 || self.Level != 2 {
		t.Fatalf("late snapshot rolled the gain back: %+v", self)
	}
	if p := c.Profile(); p.XP != 150 || p.Level != 2 {
		t.Fatalf("late snapshot rolled the profile back: %+v", p)
	}

	// A snapshot assembled after the gain still wins.
	c.handleMessage(proto.WorldState{
		Entities:  []proto.EntityState{{ID: "p1", XP: 175, Level: 2, UpdatedAt: 11}},
		Timestamp: 11,
	})
	if self := c.Self(); self.XP != 175 {
		t.Fatalf("fresher snapshot must apply: %+v", self)
	}
}

func TestFriendAddAndRemove(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.handleMessage(proto.FriendAdded{ID: "p2", Name: "drifter"})
	if name := c.Friends()["p2"]; name != "drifter" {
		t.Fatalf("friend not added: %v", c.Friends())
	}
	c.handleMessage(proto.FriendRemoved{ID: "p2"})
	if _, ok := c.Friends()["p2"]; ok {
		t.Fatalf("friend not removed")
	}
}

func TestEchoLifecycle(t *testing.T) {
	c, _, _ := newReconcileClient(t)

	c.handleMessage(proto.Echo{ID: "echo-1", From: "p2", X: 3, Y: 4, Text: "hello"})
	echoes := c.Echoes()
	if len(echoes) != 1 || echoes[0].Text != "hello" || echoes[0].Ignited {
		t.Fatalf("echo not placed: %+v", echoes)
	}

	c.handleMessage(proto.EchoIgnited{From: "p3", EchoID: "echo-1"})
	if echoes = c.Echoes(); !echoes[0].Ignited {
		t.Fatalf("echo ignition not applied")
	}

	// Snapshots own the echo table.
	c.handleMessage(proto.WorldState{Echoes: []proto.EchoState{{ID: "echo-2", Text: "new"}}})
	echoes = c.Echoes()
	if len(echoes) != 1 || echoes[0].ID != "echo-2" {
		t.Fatalf("snapshot must replace the echo table: %+v", echoes)
	}
}

func TestTeleportMovesSelfAndRetargetsRegion(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.SetSelfPosition(1, 1)

	c.handleMessage(proto.TeleportSuccess{X: 4000, Y: -4000, Region: "perseus"})

	self := c.Self()
	if self.X != 4000 || self.Y != -4000 {
		t.Fatalf("teleport must move self: %+v", self)
	}
	if c.Region() != "perseus" {
		t.Fatalf("region not retargeted: %s", c.Region())
	}
}

func TestPlayerUpdateNudgesKnownEntityOnly(t *testing.T) {
	c, _, _ := newReconcileClient(t)
	c.handleMessage(snapshotOf(proto.EntityState{ID: "p2", X: 0, Y: 0}))

	c.handleMessage(proto.PlayerUpdate{From: "p2", X: 10, Y: 0})
	ent, _ := c.Entity("p2")
	if math.Abs(ent.X-3) > 1e-9 {
		t.Fatalf("expected blended nudge, got %f", ent.X)
	}

	c.handleMessage(proto.PlayerUpdate{From: "ghost", X: 1, Y: 1})
	if _, ok := c.Entity("ghost"); ok {
		t.Fatalf("updates from unknown senders must wait for a snapshot")
	}
}
