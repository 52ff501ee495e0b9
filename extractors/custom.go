package extractors

import "context"

// CustomFactory constructs a custom extractor by its configured
// implementation name. The runner instantiates it without additional
// parameters; the implementation consumes its portion of the config
// directly, per spec.md 4.5.5.
type CustomFactory func() (Extractor, error)

// customRegistry holds factories for custom implementations, registered
// explicitly by application code (never via import side effects, per
// spec design note 9).
var customRegistry = map[string]CustomFactory{}

// RegisterCustom adds a named custom extractor implementation.
func RegisterCustom(name string, factory CustomFactory) {
	customRegistry[name] = factory
}

// NewCustom instantiates the named custom extractor.
func NewCustom(name string) (Extractor, error) {
	factory, ok := customRegistry[name]
	if !ok {
		return nil, &UnknownCustomExtractorError{Name: name}
	}
	return factory()
}

// UnknownCustomExtractorError reports a custom source_type referencing
// an implementation that was never registered.
type UnknownCustomExtractorError struct {
	Name string
}

func (e *UnknownCustomExtractorError) Error() string {
	return "extractors: no custom extractor registered under name " + e.Name
}

var _ Extractor = (*noopCustomExtractor)(nil)

// noopCustomExtractor satisfies the Extractor interface and returns no
// records. Nothing in this package constructs it; NewCustom returns an
// UnknownCustomExtractorError for unregistered names instead.
type noopCustomExtractor struct{}

func (noopCustomExtractor) FetchRecords(ctx context.Context, runDate string) (FetchResult, error) {
	return FetchResult{}, nil
}

func (noopCustomExtractor) GetWatermarkConfig() *WatermarkConfig { return nil }
