package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestComponentTagsJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(&buf, "json"), "review_service")

	log.Info().Int64("question_id", 7).Msg("state changed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "review_service" {
		t.Fatalf("component = %v, want review_service", entry["component"])
	}
	if entry["message"] != "state changed" {
		t.Fatalf("message = %v", entry["message"])
	}
	if entry["question_id"] != float64(7) {
		t.Fatalf("question_id = %v", entry["question_id"])
	}
}

func TestSetupFallsBackToInfo(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	_ = Setup("nonsense", "json")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info", zerolog.GlobalLevel())
	}
}
