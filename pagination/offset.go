package pagination

import "fmt"

// OffsetState pages via offset/limit params. Terminates when a page comes
// back smaller than page_size, or empty.
type OffsetState struct {
	maxRecordsGuard
	OffsetParam string
	LimitParam  string
	PageSize    int

	offset int
	done   bool
}

func NewOffset(offsetParam, limitParam string, pageSize, maxRecords int) *OffsetState {
	return &OffsetState{
		maxRecordsGuard: maxRecordsGuard{MaxRecords: maxRecords},
		OffsetParam:     offsetParam,
		LimitParam:      limitParam,
		PageSize:        pageSize,
	}
}

func (s *OffsetState) ShouldFetchMore() bool { return !s.done }

func (s *OffsetState) BuildParams(base map[string]any) map[string]any {
	out := cloneParams(base)
	out[s.OffsetParam] = s.offset
	out[s.LimitParam] = s.PageSize
	return out
}

func (s *OffsetState) OnRecords(records []map[string]any, response map[string]any) bool {
	accepted, exhausted := s.accept(records)
	if exhausted || len(records) == 0 || len(records) < s.PageSize {
		s.done = true
		return false
	}
	s.offset += len(accepted)
	return true
}

func (s *OffsetState) Describe() string {
	return fmt.Sprintf("pagination=offset offset=%d page_size=%d", s.offset, s.PageSize)
}

// PeekWindow computes the next n offsets arithmetically, since offset
// pagination's next param never depends on response content.
func (s *OffsetState) PeekWindow(base map[string]any, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	offset := s.offset
	for i := 0; i < n; i++ {
		p := cloneParams(base)
		p[s.OffsetParam] = offset
		p[s.LimitParam] = s.PageSize
		out = append(out, p)
		offset += s.PageSize
	}
	return out
}
