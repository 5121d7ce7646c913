package proto

import (
	"strings"
	"testing"
)

func TestDecodeWorldState(t *testing.T) {
	payload := []byte(`{
		"type": "world_state",
		"timestamp": 1700000000123,
		"data": {
			"entities": [
				{"id": "p2", "name": "drifter", "x": 10.5, "y": -4, "hue": 200, "xp": 40, "level": 2, "updatedAt": 1700000000100}
			],
			"litStars": ["genesis:0:0:3"],
			"echoes": [{"id": "echo-1", "x": 1, "y": 2, "text": "hello"}],
			"linkedCount": 7
		}
	}`)

	msg, err := DecodeServerMessage(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	state, ok := msg.(WorldState)
	if !ok {
		t.Fatalf("expected WorldState, got %T", msg)
	}
	if len(state.Entities) != 1 || state.Entities[0].ID != "p2" {
		t.Fatalf("unexpected entities: %+v", state.Entities)
	}
	if state.LinkedCount != 7 {
		t.Fatalf("expected linkedCount 7, got %d", state.LinkedCount)
	}
	if len(state.LitStars) != 1 || state.LitStars[0] != "genesis:0:0:3" {
		t.Fatalf("unexpected litStars: %v", state.LitStars)
	}
}

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		check   func(t *testing.T, msg ServerMessage)
	}{
		{
			name:    "pong falls back to envelope timestamp",
			payload: `{"type":"pong","timestamp":42}`,
			check: func(t *testing.T, msg ServerMessage) {
				pong, ok := msg.(Pong)
				if !ok {
					t.Fatalf("expected Pong, got %T", msg)
				}
				if pong.Timestamp != 42 {
					t.Fatalf("expected timestamp 42, got %d", pong.Timestamp)
				}
			},
		},
		{
			name:    "star_lit",
			payload: `{"type":"star_lit","data":{"from":"p2","starId":"genesis:1:1:0"},"timestamp":1}`,
			check: func(t *testing.T, msg ServerMessage) {
				lit, ok := msg.(StarLit)
				if !ok {
					t.Fatalf("expected StarLit, got %T", msg)
				}
				if lit.StarID != "genesis:1:1:0" || lit.From != "p2" {
					t.Fatalf("unexpected star_lit: %+v", lit)
				}
			},
		},
		{
			name:    "xp_gain falls back to envelope timestamp",
			payload: `{"type":"xp_gain","data":{"amount":25,"reason":"star_lit","newXp":125,"newLevel":3,"leveledUp":true},"timestamp":1}`,
			check: func(t *testing.T, msg ServerMessage) {
				gain, ok := msg.(XPGain)
				if !ok {
					t.Fatalf("expected XPGain, got %T", msg)
				}
				if !gain.LeveledUp || gain.NewLevel != 3 || gain.Amount != 25 {
					t.Fatalf("unexpected xp_gain: %+v", gain)
				}
				if gain.Timestamp != 1 {
					t.Fatalf("expected envelope timestamp 1, got %d", gain.Timestamp)
				}
			},
		},
		{
			name:    "cooldown",
			payload: `{"type":"cooldown","data":{"action":"sing","remainingMs":1500},"timestamp":1}`,
			check: func(t *testing.T, msg ServerMessage) {
				cd, ok := msg.(Cooldown)
				if !ok {
					t.Fatalf("expected Cooldown, got %T", msg)
				}
				if cd.Action != "sing" || cd.RemainingMs != 1500 {
					t.Fatalf("unexpected cooldown: %+v", cd)
				}
			},
		},
		{
			name:    "whisper without sender tolerated",
			payload: `{"type":"whisper","data":{"to":"p1","text":"psst"},"timestamp":1}`,
			check: func(t *testing.T, msg ServerMessage) {
				w, ok := msg.(Whisper)
				if !ok {
					t.Fatalf("expected Whisper, got %T", msg)
				}
				if w.From != "" || w.Text != "psst" {
					t.Fatalf("unexpected whisper: %+v", w)
				}
			},
		},
		{
			name:    "voice_signal keeps payload opaque",
			payload: `{"type":"voice_signal","data":{"from":"p2","payload":{"sdp":"offer"}},"timestamp":1}`,
			check: func(t *testing.T, msg ServerMessage) {
				sig, ok := msg.(VoiceSignal)
				if !ok {
					t.Fatalf("expected VoiceSignal, got %T", msg)
				}
				if !strings.Contains(string(sig.Payload), "offer") {
					t.Fatalf("payload not preserved: %s", sig.Payload)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeServerMessage([]byte(tc.payload))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			tc.check(t, msg)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"missing type", `{"timestamp":1}`},
		{"unknown type", `{"type":"warp_drive","timestamp":1}`},
		{"star_lit without id", `{"type":"star_lit","data":{"from":"p2"},"timestamp":1}`},
		{"echo_ignited without id", `{"type":"echo_ignited","data":{},"timestamp":1}`},
		{"player_data without id", `{"type":"player_data","data":{"name":"x"},"timestamp":1}`},
		{"world_state bad shape", `{"type":"world_state","data":{"entities":"nope"},"timestamp":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeServerMessage([]byte(tc.payload)); err == nil {
				t.Fatalf("expected decode of %s to fail", tc.name)
			}
		})
	}
}

func TestEncodeClientMessageRoundTrip(t *testing.T) {
	frame, err := EncodeClientMessage(TypePlayerUpdate, PlayerUpdate{X: 3, Y: 4}, 77)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(frame)
	if err != nil {
		t.Fatalf("decode of encoded frame failed: %v", err)
	}
	update, ok := msg.(PlayerUpdate)
	if !ok {
		t.Fatalf("expected PlayerUpdate, got %T", msg)
	}
	if update.X != 3 || update.Y != 4 {
		t.Fatalf("unexpected round trip: %+v", update)
	}
}

func TestEncodePingHasNoData(t *testing.T) {
	frame, err := EncodeClientMessage(TypePing, Ping{Timestamp: 99}, 99)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(string(frame), `"type":"ping"`) {
		t.Fatalf("missing type tag: %s", frame)
	}
}
