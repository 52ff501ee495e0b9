package latedata

import (
	"testing"
	"time"

	"github.com/withobsrvr/medallion-foundry/curate"
)

func TestAllowModeIncludesEverythingSilently(t *testing.T) {
	ref := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []curate.Row{{"event_time": "2024-01-01"}}
	result, err := Classify(rows, "event_time", ref, 5, ModeAllow)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 || result.LateCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRejectModeFailsWhenLateRecordsPresent(t *testing.T) {
	ref := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []curate.Row{{"event_time": "2024-01-01"}}
	_, err := Classify(rows, "event_time", ref, 5, ModeReject)
	if err == nil {
		t.Fatal("expected reject mode to fail on late records")
	}
}

func TestRejectModeSucceedsWhenNoLateRecords(t *testing.T) {
	ref := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []curate.Row{{"event_time": "2024-06-10"}}
	result, err := Classify(rows, "event_time", ref, 5, ModeReject)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 {
		t.Fatal("expected on-time row to pass through")
	}
}

func TestQuarantineModeSplitsRows(t *testing.T) {
	ref := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []curate.Row{
		{"event_time": "2024-01-01", "id": "late"},
		{"event_time": "2024-06-10", "id": "ontime"},
	}
	result, err := Classify(rows, "event_time", ref, 5, ModeQuarantine)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 || len(result.Late) != 1 {
		t.Fatalf("expected a 1/1 split, got %d on-time, %d late", len(result.Rows), len(result.Late))
	}
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	ref := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := []curate.Row{{"event_time": "2024-06-05"}}
	result, err := Classify(rows, "event_time", ref, 5, ModeQuarantine)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Late) != 0 {
		t.Fatal("a record exactly at the threshold boundary must be on-time")
	}
	if len(result.Rows) != 1 {
		t.Fatal("expected the boundary record to be classified on-time")
	}
}

func TestUnknownModeIsConfigurationError(t *testing.T) {
	ref := time.Now()
	_, err := Classify(nil, "event_time", ref, 5, "bogus")
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
