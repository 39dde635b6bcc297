package sheets

import (
	"testing"
	"time"

	"parkhub/internal/model"
)

func TestHistoryRowValues(t *testing.T) {
	changedAt := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	entry := &model.StatusHistoryEntry{
		ID:             42,
		GarageID:       7,
		Status:         model.StatusMaintenance,
		Reason:         "lift inspection",
		ChangedBy:      3,
		ChangedAt:      changedAt,
		ForceCloseUsed: true,
	}

	values := historyRowValues(entry)

	expected := []interface{}{
		int64(42),
		int64(7),
		"maintenance",
		"lift inspection",
		int64(3),
		"2026-08-24 10:30:00",
		"yes",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}

	entry.ForceCloseUsed = false
	values = historyRowValues(entry)
	if values[6] != "" {
		t.Errorf("Expected empty force marker, got %v", values[6])
	}
}
