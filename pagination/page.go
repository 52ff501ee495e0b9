package pagination

import "fmt"

// PageState pages via page/page_size params. Terminates when a page comes
// back smaller than page_size, empty, or max_pages is reached.
type PageState struct {
	maxRecordsGuard
	PageParam     string
	PageSizeParam string
	PageSize      int
	MaxPages      int // 0 = unlimited

	page int
	done bool
}

func NewPage(pageParam, pageSizeParam string, pageSize, maxPages, maxRecords int) *PageState {
	return &PageState{
		maxRecordsGuard: maxRecordsGuard{MaxRecords: maxRecords},
		PageParam:       pageParam,
		PageSizeParam:   pageSizeParam,
		PageSize:        pageSize,
		MaxPages:        maxPages,
		page:            1,
	}
}

func (s *PageState) ShouldFetchMore() bool { return !s.done }

func (s *PageState) BuildParams(base map[string]any) map[string]any {
	out := cloneParams(base)
	out[s.PageParam] = s.page
	out[s.PageSizeParam] = s.PageSize
	return out
}

func (s *PageState) OnRecords(records []map[string]any, response map[string]any) bool {
	_, exhausted := s.accept(records)
	if exhausted || len(records) == 0 || len(records) < s.PageSize {
		s.done = true
		return false
	}
	if s.MaxPages > 0 && s.page >= s.MaxPages {
		s.done = true
		return false
	}
	s.page++
	return true
}

func (s *PageState) Describe() string {
	return fmt.Sprintf("pagination=page page=%d page_size=%d", s.page, s.PageSize)
}

// PeekWindow computes the next n page numbers arithmetically, stopping
// early at MaxPages, since page pagination's next param never depends on
// response content.
func (s *PageState) PeekWindow(base map[string]any, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	page := s.page
	for i := 0; i < n; i++ {
		if s.MaxPages > 0 && page > s.MaxPages {
			break
		}
		p := cloneParams(base)
		p[s.PageParam] = page
		p[s.PageSizeParam] = s.PageSize
		out = append(out, p)
		page++
	}
	return out
}
