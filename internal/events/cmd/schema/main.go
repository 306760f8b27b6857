// Command schema emits a JSON Schema describing the notification event
// envelope and every typed payload, for client tooling and payload
// validation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"stardrift/server/internal/events"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(schemaRoot))
	schema.Title = "Stardrift Notification Events"
	schema.Description = "Envelope and payload shapes pushed to game clients"
	return schema
}

// schemaRoot exists purely so the reflector emits definitions for every
// payload type alongside the envelope.
type schemaRoot struct {
	Event         events.Event                        `json:"event"`
	GameEnded     events.GameEndedPayload             `json:"gameEnded"`
	Defeated      events.PlayerDefeatedPayload        `json:"playerDefeated"`
	GalacticCycle events.GalacticCycleCompletePayload `json:"playerGalacticCycleComplete"`
	StarCaptured  events.StarCapturedPayload          `json:"starCaptured"`
	Combat        events.CombatResolvedPayload        `json:"combatResolved"`
	Research      events.ResearchCompletePayload      `json:"researchComplete"`
	TurnForced    events.TurnForcedPayload            `json:"turnForced"`
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
