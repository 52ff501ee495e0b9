package pagination

import "fmt"

// CursorState pages via an opaque cursor extracted from the response body
// at CursorPath (a dotted path). The cursor param is omitted on the first
// call. Terminates when the response yields no cursor, or records come
// back empty.
type CursorState struct {
	maxRecordsGuard
	CursorParam string
	CursorPath  string

	cursor    string
	haveCursor bool
	first     bool
	done      bool
}

func NewCursor(cursorParam, cursorPath string, maxRecords int) *CursorState {
	return &CursorState{
		maxRecordsGuard: maxRecordsGuard{MaxRecords: maxRecords},
		CursorParam:     cursorParam,
		CursorPath:      cursorPath,
		first:           true,
	}
}

func (s *CursorState) ShouldFetchMore() bool { return !s.done }

func (s *CursorState) BuildParams(base map[string]any) map[string]any {
	out := cloneParams(base)
	if !s.first && s.haveCursor {
		out[s.CursorParam] = s.cursor
	}
	return out
}

func (s *CursorState) OnRecords(records []map[string]any, response map[string]any) bool {
	s.first = false
	_, exhausted := s.accept(records)
	if exhausted || len(records) == 0 {
		s.done = true
		return false
	}

	next := dottedLookup(response, s.CursorPath)
	nextStr := toString(next)
	if next == nil || nextStr == "" {
		s.done = true
		return false
	}

	s.cursor = nextStr
	s.haveCursor = true
	return true
}

func (s *CursorState) Describe() string {
	return fmt.Sprintf("pagination=cursor cursor=%q", s.cursor)
}
