package extractors

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/withobsrvr/medallion-foundry/curate"
)

func TestExtractRecordsFollowsDataPath(t *testing.T) {
	body := map[string]any{
		"meta": map[string]any{"page": 1},
		"result": map[string]any{
			"items": []any{
				map[string]any{"id": "1"},
				map[string]any{"id": "2"},
			},
		},
	}
	records := extractRecords(body, "result.items")
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestExtractRecordsFallsBackToCommonKeys(t *testing.T) {
	body := map[string]any{"data": []any{map[string]any{"id": "1"}}}
	records := extractRecords(body, "")
	if len(records) != 1 {
		t.Fatalf("expected fallback to 'data' key, got %d records", len(records))
	}
}

func TestExtractRecordsWrapsLoneObject(t *testing.T) {
	body := map[string]any{"data": map[string]any{"id": "1"}}
	records := extractRecords(body, "")
	if len(records) != 1 {
		t.Fatalf("expected lone object wrapped as single-row list, got %d", len(records))
	}
}

func TestMaxCursorComputesLexicographicMax(t *testing.T) {
	records := []curate.Row{
		{"cursor": "b"},
		{"cursor": "z"},
		{"cursor": "a"},
	}
	cursor, ok := maxCursor(records, "cursor")
	if !ok || cursor != "z" {
		t.Fatalf("expected max cursor z, got %q (ok=%v)", cursor, ok)
	}
}

func TestParseRetryAfterAcceptsNumericSeconds(t *testing.T) {
	d := parseRetryAfter("30")
	if d != 30*time.Second {
		t.Fatalf("expected 30s, got %v", d)
	}
}

func TestParseRetryAfterRejectsHTTPDateForm(t *testing.T) {
	d := parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT")
	if d != 0 {
		t.Fatalf("expected HTTP-date form to be ignored, got %v", d)
	}
}

func TestRetryAfterDelayPreemptsComputedBackoff(t *testing.T) {
	err := &retryableStatusError{status: 429, url: "http://x", retryAfter: 5 * time.Second, hasRetryAfter: true}
	delay, ok := RetryAfterDelay(err, 1, 2*time.Second)
	if !ok || delay != 5*time.Second {
		t.Fatalf("expected Retry-After to preempt with 5s, got %v (ok=%v)", delay, ok)
	}
}

func TestRetryAfterDelayFallsBackWithoutHeader(t *testing.T) {
	err := &retryableStatusError{status: 503, url: "http://x"}
	_, ok := RetryAfterDelay(err, 1, 2*time.Second)
	if ok {
		t.Fatal("expected no preemption when Retry-After header absent")
	}
}

func TestRewriteIncrementalQueryInsertsWhereWhenAbsent(t *testing.T) {
	q, err := rewriteIncrementalQuery("SELECT * FROM orders", "updated_at", "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT * FROM orders WHERE updated_at > '2024-01-01'"
	if q != want {
		t.Fatalf("got %q, want %q", q, want)
	}
}

func TestRewriteIncrementalQueryInsertsAndWhenWherePresent(t *testing.T) {
	q, err := rewriteIncrementalQuery("SELECT * FROM orders WHERE region = 'us'", "updated_at", "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT * FROM orders WHERE region = 'us' AND updated_at > '2024-01-01'"
	if q != want {
		t.Fatalf("got %q, want %q", q, want)
	}
}

func TestRewriteIncrementalQueryRequiresCursorColumn(t *testing.T) {
	if _, err := rewriteIncrementalQuery("SELECT * FROM orders", "", "x"); err == nil {
		t.Fatal("expected error when cursor_column is unset")
	}
}

func TestReadCSVParsesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	content := "order_id,customer_id\nORD001,CUST001\nORD002,CUST002\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := readCSV(path, ',')
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["order_id"] != "ORD001" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestReadFixedWidthSingleRecordSlicesPositionally(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixed.txt")
	content := "CUST001John Smith \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := readFixedWidthSingleRecord(path, []string{"id", "name"}, []int{7, 12})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["id"] != "CUST001" || rows[0]["name"] != "John Smith" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestReadFixedWidthMultiRecordFlattenMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.txt")
	// type(1) + id(7) for parent "A", type(1) + name(10) for child "B"
	content := "ACUST001\nBchild1    \nBchild2    \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := FileConfig{
		RecordTypePosition: 0,
		RecordTypeLength:   1,
		OutputMode:         "flatten",
		RecordTypes: []RecordTypeSpec{
			{Type: "A", Role: "parent", Columns: []string{"customer_id"}, Widths: []int{7}},
			{Type: "B", Role: "child", Columns: []string{"child_name"}, Widths: []int{10}},
		},
	}
	rows, err := readFixedWidthMultiRecord(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 flattened child rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r["customer_id"] != "CUST001" {
			t.Fatalf("expected parent fields repeated on child row, got %+v", r)
		}
	}
}

func TestReadFixedWidthMultiRecordChildBeforeParentIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.txt")
	content := "Bchild1    \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := FileConfig{
		RecordTypePosition: 0,
		RecordTypeLength:   1,
		RecordTypes: []RecordTypeSpec{
			{Type: "A", Role: "parent", Columns: []string{"customer_id"}, Widths: []int{7}},
			{Type: "B", Role: "child", Columns: []string{"child_name"}, Widths: []int{10}},
		},
	}
	if _, err := readFixedWidthMultiRecord(path, cfg); err == nil {
		t.Fatal("expected fatal error for child line before any parent")
	}
}

func TestReadFixedWidthMultiRecordUnknownRoleIsConfigError(t *testing.T) {
	_, err := indexRecordTypes([]RecordTypeSpec{{Type: "A", Role: "grandparent"}})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestReadFixedWidthMultiRecordSkipsUnknownTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.txt")
	content := "ACUST001\nXunknown   \nBchild1    \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := FileConfig{
		RecordTypePosition: 0,
		RecordTypeLength:   1,
		OutputMode:         "flatten",
		RecordTypes: []RecordTypeSpec{
			{Type: "A", Role: "parent", Columns: []string{"customer_id"}, Widths: []int{7}},
			{Type: "B", Role: "child", Columns: []string{"child_name"}, Widths: []int{10}},
		},
	}
	rows, err := readFixedWidthMultiRecord(path, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected unknown record type to be silently skipped, got %d rows", len(rows))
	}
}
