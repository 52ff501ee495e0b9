package pagination

// NoneState fetches exactly one page and terminates.
type NoneState struct {
	maxRecordsGuard
	fetched bool
}

func NewNone(maxRecords int) *NoneState {
	return &NoneState{maxRecordsGuard: maxRecordsGuard{MaxRecords: maxRecords}}
}

func (s *NoneState) ShouldFetchMore() bool { return !s.fetched }

func (s *NoneState) BuildParams(base map[string]any) map[string]any {
	return cloneParams(base)
}

func (s *NoneState) OnRecords(records []map[string]any, response map[string]any) bool {
	s.fetched = true
	_, _ = s.accept(records)
	return false
}

func (s *NoneState) Describe() string { return "pagination=none" }

func cloneParams(base map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	return out
}
