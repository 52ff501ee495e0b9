package pagination

import "testing"

func page(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": i}
	}
	return out
}

func TestNoneStateFetchesExactlyOnce(t *testing.T) {
	s := NewNone(0)
	if !s.ShouldFetchMore() {
		t.Fatal("expected first fetch to be allowed")
	}
	cont := s.OnRecords(page(10), nil)
	if cont {
		t.Fatal("none pagination must not continue")
	}
	if s.ShouldFetchMore() {
		t.Fatal("none pagination must not fetch again")
	}
}

func TestOffsetStateTerminatesOnShortPage(t *testing.T) {
	s := NewOffset("offset", "limit", 100, 0)
	cont := s.OnRecords(page(100), nil)
	if !cont {
		t.Fatal("expected full page to continue")
	}
	cont = s.OnRecords(page(40), nil)
	if cont {
		t.Fatal("expected short page to terminate")
	}
}

func TestOffsetStateAdvancesByAcceptedCount(t *testing.T) {
	s := NewOffset("offset", "limit", 50, 0)
	s.OnRecords(page(50), nil)
	params := s.BuildParams(nil)
	if params["offset"] != 50 {
		t.Fatalf("expected offset 50, got %v", params["offset"])
	}
}

func TestPageStateBoundedByMaxPages(t *testing.T) {
	s := NewPage("page", "page_size", 20, 3, 0)
	fetches := 0
	for s.ShouldFetchMore() {
		fetches++
		if fetches > 10 {
			t.Fatal("pagination did not terminate within bound")
		}
		s.OnRecords(page(20), nil)
	}
	if fetches != 3 {
		t.Fatalf("expected exactly 3 page fetches, got %d", fetches)
	}
}

func TestPageStateTerminatesOnShortPage(t *testing.T) {
	s := NewPage("page", "page_size", 20, 0, 0)
	s.OnRecords(page(20), nil)
	cont := s.OnRecords(page(5), nil)
	if cont {
		t.Fatal("expected short page to terminate")
	}
}

func TestMaxRecordsTruncatesOffsetPagination(t *testing.T) {
	s := NewOffset("offset", "limit", 50, 120)
	total := 0
	fetches := 0
	for s.ShouldFetchMore() {
		fetches++
		recs := page(50)
		cont := s.OnRecords(recs, nil)
		total += min(50, 120-total)
		if !cont {
			break
		}
	}
	if total > 120 {
		t.Fatalf("max_records must cap total records, got %d", total)
	}
	if fetches != 3 {
		t.Fatalf("max_records=120 must stop full 50-record pages after 3 fetches, got %d", fetches)
	}
}

func TestCursorStateFollowsResponseCursor(t *testing.T) {
	s := NewCursor("cursor", "meta.next", 0)
	resp := map[string]any{"meta": map[string]any{"next": "abc123"}}
	cont := s.OnRecords(page(10), resp)
	if !cont {
		t.Fatal("expected cursor continuation when next cursor present")
	}
	params := s.BuildParams(nil)
	if params["cursor"] != "abc123" {
		t.Fatalf("expected cursor param abc123, got %v", params["cursor"])
	}
}

func TestCursorStateOmitsParamOnFirstCall(t *testing.T) {
	s := NewCursor("cursor", "meta.next", 0)
	params := s.BuildParams(nil)
	if _, ok := params["cursor"]; ok {
		t.Fatal("cursor param must be omitted on first call")
	}
}

func TestCursorStateTerminatesWhenNoCursorReturned(t *testing.T) {
	s := NewCursor("cursor", "meta.next", 0)
	cont := s.OnRecords(page(10), map[string]any{"meta": map[string]any{}})
	if cont {
		t.Fatal("expected termination when response has no next cursor")
	}
}

func TestCursorStateTerminatesOnEmptyRecords(t *testing.T) {
	s := NewCursor("cursor", "meta.next", 0)
	cont := s.OnRecords(nil, map[string]any{"meta": map[string]any{"next": "x"}})
	if cont {
		t.Fatal("expected termination on empty records regardless of cursor")
	}
}

func TestOffsetStatePeekWindowComputesArithmeticOffsets(t *testing.T) {
	s := NewOffset("offset", "limit", 50, 0)
	window := s.PeekWindow(nil, 3)
	if len(window) != 3 {
		t.Fatalf("expected 3 peeked pages, got %d", len(window))
	}
	for i, want := range []int{0, 50, 100} {
		if window[i]["offset"] != want {
			t.Fatalf("page %d: expected offset %d, got %v", i, want, window[i]["offset"])
		}
	}
}

func TestPageStatePeekWindowStopsAtMaxPages(t *testing.T) {
	s := NewPage("page", "page_size", 20, 2, 0)
	window := s.PeekWindow(nil, 5)
	if len(window) != 2 {
		t.Fatalf("expected peek window bounded by max_pages=2, got %d", len(window))
	}
}

func TestCursorStateIsNotAWindowPager(t *testing.T) {
	var s State = NewCursor("cursor", "meta.next", 0)
	if _, ok := s.(WindowPager); ok {
		t.Fatal("cursor pagination's next param is response-dependent; it must not implement WindowPager")
	}
}
