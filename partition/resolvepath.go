// Package partition implements the input-mode resolver (spec.md 4.7) and
// the partition writer (spec.md 4.8): expanding a templated source path
// to the right set of date partitions to read, and writing a partition's
// data files plus its _metadata.json/_checksums.json manifests.
package partition

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/model"
)

var logger = logging.New("partition")

var dtPartitionPattern = regexp.MustCompile(`dt=(\d{4}-\d{2}-\d{2}|\d{8})`)

// ResolveSourcePaths implements spec.md 4.7's input-mode resolver.
// template is the Silver source_path with {system}/{entity}/{run_date}
// already substituted except for the dt=... segment, which this function
// expands when inputMode is append_log.
func ResolveSourcePaths(template string, inputMode model.InputMode) ([]string, error) {
	switch inputMode {
	case model.InputReplaceDaily, "":
		return []string{template}, nil

	case model.InputAppendLog:
		if !dtPartitionPattern.MatchString(template) {
			logger.Warn().Str("path", template).Msg("append_log input_mode on a non-date-partitioned path; passing through unchanged")
			return []string{template}, nil
		}
		globbed := dtPartitionPattern.ReplaceAllString(template, "dt=*")
		matches, err := filepath.Glob(globbed)
		if err != nil {
			return nil, err
		}
		return matches, nil

	default:
		return []string{template}, nil
	}
}

// ResolveInputMode implements spec.md 4.7's auto-wiring fallback: Silver
// inherits Bronze's input_mode when unset; if both are unset, the runner
// defaults to replace_daily for state entities and append_log for event
// entities.
func ResolveInputMode(silverInputMode, bronzeInputMode model.InputMode, entityKind model.EntityKind) model.InputMode {
	if silverInputMode != "" {
		return silverInputMode
	}
	if bronzeInputMode != "" {
		return bronzeInputMode
	}
	if entityKind == model.EntityEvent {
		return model.InputAppendLog
	}
	return model.InputReplaceDaily
}

// IsDatePartitioned reports whether a path contains a dt=... segment.
func IsDatePartitioned(path string) bool {
	return dtPartitionPattern.MatchString(path)
}

// SubstitutePlaceholders replaces {system}/{entity}/{run_date} in a
// templated path. Exposed for the runner to build concrete paths before
// calling ResolveSourcePaths.
func SubstitutePlaceholders(template, system, entity, runDate string) string {
	r := strings.NewReplacer(
		"{system}", system,
		"{entity}", entity,
		"{run_date}", runDate,
	)
	return r.Replace(template)
}
