// Package proto defines the wire catalog shared with the stardrift server:
// JSON envelopes carrying one typed payload each. Inbound payloads are
// validated once at this boundary; everything past it works with the typed
// variants only.
package proto

import (
	"encoding/json"
	"fmt"
)

// Message type identifiers. The catalog is finite; DecodeServerMessage
// switches exhaustively over it.
const (
	TypeWorldState    = "world_state"
	TypePlayerUpdate  = "player_update"
	TypeSing          = "sing"
	TypePulse         = "pulse"
	TypeEmote         = "emote"
	TypeEcho          = "echo"
	TypeStarLit       = "star_lit"
	TypeEchoIgnite    = "echo_ignite"
	TypeEchoIgnited   = "echo_ignited"
	TypeWhisper       = "whisper"
	TypePlayerData    = "player_data"
	TypeXPGain        = "xp_gain"
	TypeCooldown      = "cooldown"
	TypeFriendAdded   = "friend_added"
	TypeFriendRemoved = "friend_removed"
	TypeTeleport      = "teleport_success"
	TypeVoiceSignal   = "voice_signal"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// EntityState is one entity slot inside a world_state snapshot.
type EntityState struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Hue       float64 `json:"hue"`
	Size      float64 `json:"size"`
	Halo      float64 `json:"halo"`
	Singing   bool    `json:"singing,omitempty"`
	Pulsing   bool    `json:"pulsing,omitempty"`
	Emote     string  `json:"emote,omitempty"`
	XP        int64   `json:"xp"`
	Level     int     `json:"level"`
	UpdatedAt int64   `json:"updatedAt"`
}

// EchoState is a persisted world echo inside a snapshot.
type EchoState struct {
	ID      string  `json:"id"`
	From    string  `json:"from,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Text    string  `json:"text"`
	Ignited bool    `json:"ignited,omitempty"`
}

// WorldState is the periodic authoritative snapshot, the sole source of truth
// for all non-self entities.
type WorldState struct {
	Entities    []EntityState `json:"entities"`
	LitStars    []string      `json:"litStars,omitempty"`
	Echoes      []EchoState   `json:"echoes,omitempty"`
	LinkedCount int           `json:"linkedCount"`
	Timestamp   int64         `json:"timestamp"`
}

func (WorldState) ServerMessageType() string { return TypeWorldState }

// PlayerUpdate carries one entity's movement intent. Symmetric: sent as an
// intent, received as the authoritative broadcast.
type PlayerUpdate struct {
	From string  `json:"from,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Hue  float64 `json:"hue,omitempty"`
}

func (PlayerUpdate) ServerMessageType() string { return TypePlayerUpdate }

// Sing is a social gesture broadcast.
type Sing struct {
	From string  `json:"from,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (Sing) ServerMessageType() string { return TypeSing }

// Pulse is a social gesture broadcast.
type Pulse struct {
	From string  `json:"from,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (Pulse) ServerMessageType() string { return TypePulse }

// Emote is a social gesture broadcast carrying a glyph.
type Emote struct {
	From  string `json:"from,omitempty"`
	Glyph string `json:"glyph"`
}

func (Emote) ServerMessageType() string { return TypeEmote }

// Echo places a persistent text echo into the world.
type Echo struct {
	From string  `json:"from,omitempty"`
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

func (Echo) ServerMessageType() string { return TypeEcho }

// StarLit announces a star ignition.
type StarLit struct {
	From   string `json:"from,omitempty"`
	StarID string `json:"starId"`
}

func (StarLit) ServerMessageType() string { return TypeStarLit }

// EchoIgnite is the client intent to ignite an echo.
type EchoIgnite struct {
	EchoID string `json:"echoId"`
}

// EchoIgnited is the authoritative broadcast of an echo ignition.
type EchoIgnited struct {
	From   string `json:"from,omitempty"`
	EchoID string `json:"echoId"`
}

func (EchoIgnited) ServerMessageType() string { return TypeEchoIgnited }

// Whisper is directed (To set) or broadcast (To empty) text.
type Whisper struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Text string `json:"text"`
}

func (Whisper) ServerMessageType() string { return TypeWhisper }

// PlayerData is the authoritative profile snapshot delivered once after a
// successful connection.
type PlayerData struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Hue       float64  `json:"hue"`
	XP        int64    `json:"xp"`
	Level     int      `json:"level"`
	Friends   []string `json:"friends,omitempty"`
	StarsLit  int      `json:"starsLit"`
	UpdatedAt int64    `json:"updatedAt"`
}

func (PlayerData) ServerMessageType() string { return TypePlayerData }

// XPGain is an authoritative progression delta. Its timestamp orders the
// delta against snapshot UpdatedAt values.
type XPGain struct {
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	NewXP     int64  `json:"newXp"`
	NewLevel  int    `json:"newLevel"`
	LeveledUp bool   `json:"leveledUp"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (XPGain) ServerMessageType() string { return TypeXPGain }

// Cooldown rejects a rate-limited intent.
type Cooldown struct {
	Action      string `json:"action"`
	RemainingMs int64  `json:"remainingMs"`
}

func (Cooldown) ServerMessageType() string { return TypeCooldown }

// FriendAdded announces a new friendship edge.
type FriendAdded struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (FriendAdded) ServerMessageType() string { return TypeFriendAdded }

// FriendRemoved announces a removed friendship edge.
type FriendRemoved struct {
	ID string `json:"id"`
}

func (FriendRemoved) ServerMessageType() string { return TypeFriendRemoved }

// TeleportSuccess confirms a teleport and carries the landing position.
type TeleportSuccess struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Region string  `json:"region"`
}

func (TeleportSuccess) ServerMessageType() string { return TypeTeleport }

// VoiceSignal relays an opaque peer-negotiation payload.
type VoiceSignal struct {
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func (VoiceSignal) ServerMessageType() string { return TypeVoiceSignal }

// Pong is the heartbeat reply; its timestamp echoes the originating ping.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Pong) ServerMessageType() string { return TypePong }

// Ping is the client heartbeat.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

// ServerMessage is implemented by every inbound variant.
type ServerMessage interface {
	ServerMessageType() string
}

// DecodeServerMessage validates one raw frame into its typed variant. The
// switch below is the only place inbound wire type strings are interpreted.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}

	decode := func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case TypeWorldState:
		var msg WorldState
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.Timestamp == 0 {
			msg.Timestamp = env.Timestamp
		}
		return msg, nil
	case TypePlayerUpdate:
		var msg PlayerUpdate
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSing:
		var msg Sing
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePulse:
		var msg Pulse
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeEmote:
		var msg Emote
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeEcho:
		var msg Echo
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeStarLit:
		var msg StarLit
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.StarID == "" {
			return nil, fmt.Errorf("decode %s payload: missing starId", env.Type)
		}
		return msg, nil
	case TypeEchoIgnited:
		var msg EchoIgnited
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.EchoID == "" {
			return nil, fmt.Errorf("decode %s payload: missing echoId", env.Type)
		}
		return msg, nil
	case TypeWhisper:
		var msg Whisper
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePlayerData:
		var msg PlayerData
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("decode %s payload: missing id", env.Type)
		}
		return msg, nil
	case TypeXPGain:
		var msg XPGain
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.Timestamp == 0 {
			msg.Timestamp = env.Timestamp
		}
		return msg, nil
	case TypeCooldown:
		var msg Cooldown
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeFriendAdded:
		var msg FriendAdded
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeFriendRemoved:
		var msg FriendRemoved
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTeleport:
		var msg TeleportSuccess
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeVoiceSignal:
		var msg VoiceSignal
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePong:
		var msg Pong
		if err := decode(&msg); err != nil {
			return nil, err
		}
		if msg.Timestamp == 0 {
			msg.Timestamp = env.Timestamp
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// EncodeClientMessage frames an outbound intent into an envelope.
func EncodeClientMessage(msgType string, data any, timestamp int64) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		raw = encoded
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Data: raw, Timestamp: timestamp})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return frame, nil
}
