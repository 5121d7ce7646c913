package client

import "stardrift/client/eventbus"

// ConnectionState tracks the client connection machine. Transitions:
// Disconnected -> Connecting -> Connected -> Reconnecting -> Connecting ...
// Reconnecting settles back to Disconnected once the attempt budget runs out.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// StateChange is the payload published on TopicStateChanged.
type StateChange struct {
	From ConnectionState
	To   ConnectionState
}

// Bus topics republished by the client. Consumers subscribe to these instead
// of touching the wire layer.
const (
	TopicStateChanged    eventbus.Topic = "connection.state_changed"
	TopicLatency         eventbus.Topic = "connection.latency"
	TopicSnapshotApplied eventbus.Topic = "world.snapshot_applied"
	TopicStarLit         eventbus.Topic = "world.star_lit"
	TopicEchoPlaced      eventbus.Topic = "world.echo_placed"
	TopicEchoIgnited     eventbus.Topic = "world.echo_ignited"
	TopicTeleported      eventbus.Topic = "world.teleported"
	TopicSing            eventbus.Topic = "social.sing"
	TopicPulse           eventbus.Topic = "social.pulse"
	TopicEmote           eventbus.Topic = "social.emote"
	TopicWhisper         eventbus.Topic = "social.whisper"
	TopicFriendAdded     eventbus.Topic = "social.friend_added"
	TopicFriendRemoved   eventbus.Topic = "social.friend_removed"
	TopicProfileUpdated  eventbus.Topic = "profile.updated"
	TopicXPGain          eventbus.Topic = "profile.xp_gain"
	TopicCooldown        eventbus.Topic = "intent.cooldown"
	TopicVoiceSignal     eventbus.Topic = "voice.signal"
)

// Gesture display windows in seconds. The server broadcasts only the gesture
// event; how long it animates is a client concern.
const (
	singDuration  = 2.0
	pulseDuration = 1.5
	emoteDuration = 3.0
)

// Entity is one reconciled presence in the shared space. The self entity's
// position is client-owned; everything else follows server snapshots.
type Entity struct {
	ID         string
	Name       string
	X          float64
	Y          float64
	Hue        float64
	Size       float64
	Halo       float64
	XP         int64
	Level      int
	UpdatedAt  int64
	Self       bool
	SingTimer  float64
	PulseTimer float64
	EmoteTimer float64
	EmoteGlyph string
}

// Echo is a persisted world echo mirrored from snapshots.
type Echo struct {
	ID      string
	From    string
	X       float64
	Y       float64
	Text    string
	Ignited bool
}

// Profile is the authoritative account state delivered by player_data.
type Profile struct {
	ID        string
	Name      string
	Hue       float64
	XP        int64
	Level     int
	StarsLit  int
	UpdatedAt int64
}

// SnapshotSummary is published on TopicSnapshotApplied after each world_state.
type SnapshotSummary struct {
	Entities    int
	Removed     int
	LinkedCount int
	Timestamp   int64
}

// LatencySample is published on TopicLatency after each heartbeat round trip.
type LatencySample struct {
	RTTMillis int64
}

// StarIgniter receives lit-star identifiers from snapshots and broadcasts.
// Implementations must tolerate calls from the client's read goroutine.
type StarIgniter interface {
	IgniteID(id string) bool
}
