package records

import (
	"context"
	"encoding/json"
	"log/slog"

	"finplan/internal/core"
)

const (
	msgImportOK        = "Data imported successfully"
	msgImportBadFormat = "Invalid data format: expected a JSON object"
	msgImportBadJSON   = "Could not parse the JSON payload. Check the data format."
)

// ImportResult reports the outcome of ImportData.
type ImportResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}

type importPayload struct {
	Travels json.RawMessage `json:"travels"`
}

// ImportData merges the travels of an exported JSON payload into the stored
// collection. Every imported travel gets a fresh id. A payload that is not a
// JSON object fails; a missing or malformed "travels" field imports nothing
// and still succeeds. Nothing is written unless every travel is valid.
func (s *Store) ImportData(ctx context.Context, jsonText string) ImportResult {
	var top any
	if err := json.Unmarshal([]byte(jsonText), &top); err != nil {
		slog.WarnContext(ctx, "Import payload is not valid JSON", "error", err)
		return ImportResult{Message: msgImportBadJSON + " (" + err.Error() + ")"}
	}
	if _, ok := top.(map[string]any); !ok {
		return ImportResult{Message: msgImportBadFormat}
	}

	var payload importPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return ImportResult{Message: msgImportBadJSON + " (" + err.Error() + ")"}
	}

	var incoming []core.Travel
	if len(payload.Travels) > 0 {
		if err := json.Unmarshal(payload.Travels, &incoming); err != nil {
			slog.WarnContext(ctx, "Ignoring malformed travels field", "error", err)
			incoming = nil
		}
	}
	if len(incoming) == 0 {
		return ImportResult{Success: true, Message: msgImportOK}
	}

	current, err := s.LoadTravels(ctx)
	if err != nil {
		return ImportResult{Message: "Import failed: " + err.Error()}
	}
	taken := make(map[int64]struct{}, len(current))
	for _, t := range current {
		taken[t.ID] = struct{}{}
	}

	for i := range incoming {
		id := s.ids.Next()
		for _, dup := taken[id]; dup; _, dup = taken[id] {
			id = s.ids.Next()
		}
		taken[id] = struct{}{}
		incoming[i].ID = id
		incoming[i].Normalize()
		incoming[i].Recompute()
	}
	if err := validateAll("travels", incoming); err != nil {
		return ImportResult{Message: "Import rejected: " + err.Error()}
	}
	if err := s.SaveTravels(ctx, append(current, incoming...)); err != nil {
		return ImportResult{Message: "Import failed: " + err.Error()}
	}

	slog.InfoContext(ctx, "Travels imported", "imported", len(incoming), "total", len(current)+len(incoming))
	return ImportResult{Success: true, Message: msgImportOK, Imported: len(incoming)}
}
