package services

import (
	"context"

	"finplan/internal/events"
	"finplan/internal/log"
	"finplan/internal/records"
)

// ImportService merges exported payloads into the store and wipes it.
type ImportService struct {
	store *records.Store
	bus   *events.Bus
}

func NewImportService(store *records.Store, bus *events.Bus) *ImportService {
	return &ImportService{store: store, bus: bus}
}

// Import merges the travels of jsonText. TRAVEL_UPDATED is published when at
// least one travel was added.
func (s *ImportService) Import(ctx context.Context, jsonText string) records.ImportResult {
	res := s.store.ImportData(ctx, jsonText)
	if !res.Success {
		log.FromContext(ctx, log.ComponentTravel).Warn("Import failed", log.FieldOperation, log.OpImport, "message", res.Message)
		return res
	}
	if res.Imported > 0 && s.bus != nil {
		s.bus.Publish(ctx, events.Event{Type: events.TravelUpdated})
	}
	return res
}

// Reset deletes every stored record and tells every listener to reload.
func (s *ImportService) Reset(ctx context.Context) error {
	if err := s.store.ClearAllData(ctx); err != nil {
		return err
	}
	if s.bus != nil {
		for _, t := range []events.Type{events.ExpenseUpdated, events.IncomeUpdated, events.TravelUpdated} {
			s.bus.Publish(ctx, events.Event{Type: t})
		}
	}
	return nil
}
