// Command protoschema emits a JSON schema for the wire message catalog so the
// server side can validate payloads against the same shapes the client decodes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"stardrift/client/internal/net/proto"
)

// catalog enumerates every payload shape keyed by its wire type string.
type catalog struct {
	WorldState      proto.WorldState      `json:"world_state"`
	PlayerUpdate    proto.PlayerUpdate    `json:"player_update"`
	Sing            proto.Sing            `json:"sing"`
	Pulse           proto.Pulse           `json:"pulse"`
	Emote           proto.Emote           `json:"emote"`
	Echo            proto.Echo            `json:"echo"`
	StarLit         proto.StarLit         `json:"star_lit"`
	EchoIgnite      proto.EchoIgnite      `json:"echo_ignite"`
	EchoIgnited     proto.EchoIgnited     `json:"echo_ignited"`
	Whisper         proto.Whisper         `json:"whisper"`
	PlayerData      proto.PlayerData      `json:"player_data"`
	XPGain          proto.XPGain          `json:"xp_gain"`
	Cooldown        proto.Cooldown        `json:"cooldown"`
	FriendAdded     proto.FriendAdded     `json:"friend_added"`
	FriendRemoved   proto.FriendRemoved   `json:"friend_removed"`
	TeleportSuccess proto.TeleportSuccess `json:"teleport_success"`
	VoiceSignal     proto.VoiceSignal     `json:"voice_signal"`
	Ping            proto.Ping            `json:"ping"`
	Pong            proto.Pong            `json:"pong"`
	Envelope        proto.Envelope        `json:"envelope"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(catalog))
	schema.Title = "Stardrift Wire Catalog"
	schema.Description = "Validates the JSON envelopes exchanged between client and server"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
