// Package latedata classifies records against a reference time and a
// threshold window per spec.md 4.11, routing them according to the
// configured mode: allow, warn, reject, or quarantine.
package latedata

import (
	"time"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
)

var logger = logging.New("latedata")

type Mode string

const (
	ModeAllow      Mode = "allow"
	ModeWarn       Mode = "warn"
	ModeReject     Mode = "reject"
	ModeQuarantine Mode = "quarantine"
)

// Result is the outcome of classifying a batch of rows.
type Result struct {
	// Rows is the set of rows to continue processing. For allow/warn it is
	// every input row. For quarantine it is the on-time subset.
	Rows []curate.Row
	// Late is populated only in quarantine mode: the rows found to be late.
	Late []curate.Row
	// LateCount is the total number of late rows observed, regardless of mode.
	LateCount int
}

// Classify applies spec.md 4.11's late-data handling. eventTimeColumn
// names the column holding each record's event time; referenceTime is
// typically the pipeline run time. A record exactly at
// referenceTime - thresholdDays is on-time (inclusive boundary).
func Classify(rows []curate.Row, eventTimeColumn string, referenceTime time.Time, thresholdDays int, mode Mode) (Result, error) {
	cutoff := referenceTime.AddDate(0, 0, -thresholdDays)

	var onTime, late []curate.Row
	for _, r := range rows {
		eventTime, ok := parseEventTime(r[eventTimeColumn])
		if !ok {
			onTime = append(onTime, r)
			continue
		}
		if eventTime.Before(cutoff) {
			late = append(late, r)
		} else {
			onTime = append(onTime, r)
		}
	}

	switch mode {
	case ModeAllow:
		return Result{Rows: rows, LateCount: len(late)}, nil

	case ModeWarn:
		if len(late) > 0 {
			logger.Warn().Int("late_count", len(late)).Msg("late records present, processing anyway")
		}
		return Result{Rows: rows, LateCount: len(late)}, nil

	case ModeReject:
		if len(late) > 0 {
			return Result{}, pipelineerr.LateDataError(len(late), thresholdDays)
		}
		return Result{Rows: rows, LateCount: 0}, nil

	case ModeQuarantine:
		return Result{Rows: onTime, Late: late, LateCount: len(late)}, nil

	default:
		return Result{}, pipelineerr.New(pipelineerr.KindConfiguration, "latedata: unknown mode").
			WithDetail("mode", string(mode))
	}
}

func parseEventTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
