// Package sheets mirrors the status change history into a Google
// spreadsheet, so non-technical staff can review it without dashboard
// access. Export is one-way and best-effort; the sqlite history stays
// the source of truth.
package sheets

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"parkhub/internal/model"
)

const historySheetRange = "History!A1"

var historyHeader = []interface{}{
	"ID", "Garage", "Status", "Reason", "Changed By", "Changed At", "Force Close",
}

// SheetsService pushes status history snapshots to one spreadsheet.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	logger        zerolog.Logger
}

// NewSheetsService builds a service from a service-account credentials
// file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, logger zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		logger:        logger.With().Str("component", "sheets").Logger(),
	}, nil
}

// ExportHistory rewrites the History sheet with the given entries,
// newest first as supplied by the store.
func (s *SheetsService) ExportHistory(ctx context.Context, entries []model.StatusHistoryEntry) error {
	values := make([][]interface{}, 0, len(entries)+1)
	values = append(values, historyHeader)
	for i := range entries {
		values = append(values, historyRowValues(&entries[i]))
	}

	vr := &sheets.ValueRange{Values: values}
	_, err := s.srv.Spreadsheets.Values.
		Update(s.spreadsheetID, historySheetRange, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update history sheet: %w", err)
	}

	s.logger.Info().Int("rows", len(entries)).Msg("status history exported to sheets")
	return nil
}

func historyRowValues(e *model.StatusHistoryEntry) []interface{} {
	forced := ""
	if e.ForceCloseUsed {
		forced = "yes"
	}
	return []interface{}{
		e.ID,
		e.GarageID,
		string(e.Status),
		e.Reason,
		e.ChangedBy,
		e.ChangedAt.Format("2006-01-02 15:04:05"),
		forced,
	}
}
