package curate

import (
	"testing"

	"github.com/withobsrvr/medallion-foundry/model"
)

func TestDedupeLatestPicksMaxTimestampPerKey(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": "2024-01-01", "v": "a"},
		{"id": "1", "ts": "2024-01-03", "v": "c"},
		{"id": "1", "ts": "2024-01-02", "v": "b"},
		{"id": "2", "ts": "2024-01-01", "v": "x"},
	}
	out := DedupeLatest(rows, []string{"id"}, "ts")
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	for _, r := range out {
		if r["id"] == "1" && r["v"] != "c" {
			t.Fatalf("expected latest version for id=1, got %v", r["v"])
		}
	}
}

func TestDedupeExactRemovesDuplicateRows(t *testing.T) {
	rows := []Row{
		{"a": "1", "b": "2"},
		{"a": "1", "b": "2"},
		{"a": "1", "b": "3"},
	}
	out := DedupeExact(rows)
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", len(out))
	}
}

func TestBuildHistoryProducesExactlyOneCurrentPerKey(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": 1, "v": "a"},
		{"id": "1", "ts": 2, "v": "b"},
		{"id": "1", "ts": 3, "v": "c"},
		{"id": "2", "ts": 1, "v": "x"},
	}
	out := BuildHistory(rows, []string{"id"}, "ts")

	if len(out) != len(rows) {
		t.Fatalf("output row count must equal input row count: got %d want %d", len(out), len(rows))
	}

	currentCount := map[string]int{}
	for _, r := range out {
		if r["is_current"] == 1 {
			currentCount[r["id"].(string)]++
		}
	}
	for id, n := range currentCount {
		if n != 1 {
			t.Fatalf("expected exactly one is_current row for key %s, got %d", id, n)
		}
	}
}

func TestBuildHistoryEffectiveToMatchesNextEffectiveFrom(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": 1, "v": "a"},
		{"id": "1", "ts": 2, "v": "b"},
	}
	out := BuildHistory(rows, []string{"id"}, "ts")

	byVal := map[string]Row{}
	for _, r := range out {
		byVal[r["v"].(string)] = r
	}
	first := byVal["a"]
	second := byVal["b"]

	if first["effective_to"] != second["effective_from"] {
		t.Fatalf("effective_to of first version must equal effective_from of next: %v != %v", first["effective_to"], second["effective_from"])
	}
	if second["effective_to"] != nil {
		t.Fatal("last version's effective_to must be nil")
	}
	if first["is_current"] != 0 || second["is_current"] != 1 {
		t.Fatal("only the last version should be marked current")
	}
}

func TestApplyCDCIgnoreDropsDeletes(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": 1, "op": "I"},
		{"id": "1", "ts": 2, "op": "D"},
		{"id": "2", "ts": 1, "op": "I"},
	}
	out, err := ApplyCDC(rows, []string{"id"}, "ts", model.DeleteIgnore, CDCOptions{OperationColumn: "op"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only id=2 to survive, got %d rows", len(out))
	}
	if _, present := out[0]["op"]; present {
		t.Fatal("operation column must be dropped")
	}
}

func TestApplyCDCTombstoneMarksDeleted(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": 1, "op": "I"},
		{"id": "1", "ts": 2, "op": "D"},
	}
	out, err := ApplyCDC(rows, []string{"id"}, "ts", model.DeleteTombstone, CDCOptions{OperationColumn: "op"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected tombstoned row to survive, got %d rows", len(out))
	}
	if out[0]["_deleted"] != true {
		t.Fatal("expected _deleted=true on tombstoned row")
	}
	if _, present := out[0]["op"]; present {
		t.Fatal("operation column must be dropped even when tombstoned")
	}
}

func TestApplyCDCTombstoneMarksSurvivorsNotDeleted(t *testing.T) {
	rows := []Row{
		{"id": "1", "ts": 1, "op": "I"},
		{"id": "1", "ts": 2, "op": "D"},
		{"id": "2", "ts": 1, "op": "I"},
	}
	out, err := ApplyCDC(rows, []string{"id"}, "ts", model.DeleteTombstone, CDCOptions{OperationColumn: "op"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both keys to survive under tombstone mode, got %d rows", len(out))
	}
	byID := map[string]Row{}
	for _, r := range out {
		byID[r["id"].(string)] = r
	}
	if byID["1"]["_deleted"] != true {
		t.Fatal("expected _deleted=true on the deleted key")
	}
	if byID["2"]["_deleted"] != false {
		t.Fatal("expected _deleted=false on the surviving key, not absent")
	}
	for _, r := range out {
		if _, present := r["op"]; present {
			t.Fatal("operation column must be dropped in tombstone mode")
		}
	}
}

func TestApplyCDCMissingOperationColumnIsFatal(t *testing.T) {
	rows := []Row{{"id": "1", "ts": 1}}
	_, err := ApplyCDC(rows, []string{"id"}, "ts", model.DeleteIgnore, CDCOptions{OperationColumn: "op"})
	if err == nil {
		t.Fatal("expected fatal error for missing operation column")
	}
}

func TestApplyCDCMissingConfigurationIsFatal(t *testing.T) {
	rows := []Row{{"id": "1", "ts": 1, "op": "I"}}
	_, err := ApplyCDC(rows, []string{"id"}, "ts", model.DeleteIgnore, CDCOptions{})
	if err == nil {
		t.Fatal("expected fatal error when operation_column is not configured")
	}
}

func TestProjectWithAttributesKeepsOnlyNaturalKeysAndAttributes(t *testing.T) {
	rows := []Row{{"id": "1", "ts": 1, "extra": "drop-me", "name": "x"}}
	out := Project(rows, ProjectionConfig{
		NaturalKeys:     []string{"id"},
		ChangeTimestamp: "ts",
		Attributes:      []string{"name"},
	})
	if _, present := out[0]["extra"]; present {
		t.Fatal("expected extra column to be projected away")
	}
	if out[0]["name"] != "x" {
		t.Fatal("expected attribute column to survive")
	}
}

func TestProjectWithExcludeColumnsDropsThem(t *testing.T) {
	rows := []Row{{"id": "1", "secret": "s", "name": "x"}}
	out := Project(rows, ProjectionConfig{ExcludeColumns: []string{"secret"}})
	if _, present := out[0]["secret"]; present {
		t.Fatal("expected excluded column to be dropped")
	}
	if out[0]["name"] != "x" {
		t.Fatal("expected non-excluded column to survive")
	}
}

func TestProjectAppliesColumnMapping(t *testing.T) {
	rows := []Row{{"old_name": "v"}}
	out := Project(rows, ProjectionConfig{ColumnMapping: map[string]string{"old_name": "new_name"}})
	if out[0]["new_name"] != "v" {
		t.Fatal("expected renamed column to carry the value")
	}
	if _, present := out[0]["old_name"]; present {
		t.Fatal("expected old column name to be gone after rename")
	}
}

func TestCurateEventsDedupesWithoutHistoryColumns(t *testing.T) {
	rows := []Row{
		{"event_id": "1", "payload": "a"},
		{"event_id": "1", "payload": "a"},
	}
	out := CurateEvents(rows)
	if len(out) != 1 {
		t.Fatalf("expected exact dedup of identical events, got %d", len(out))
	}
	if _, present := out[0]["is_current"]; present {
		t.Fatal("event curation must not introduce history columns")
	}
}
