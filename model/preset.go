// Package model implements the declarative preset expansion engine from
// spec.md 4.9: a Silver `model` tag expands to a subset of the
// (entity_kind, history_mode, input_mode, delete_mode) axes, with
// explicit Silver fields always taking precedence over preset defaults.
package model

import "fmt"

type EntityKind string

const (
	EntityState EntityKind = "state"
	EntityEvent EntityKind = "event"
)

type HistoryMode string

const (
	HistoryCurrentOnly HistoryMode = "current_only"
	HistoryFullHistory HistoryMode = "full_history"
)

type InputMode string

const (
	InputReplaceDaily InputMode = "replace_daily"
	InputAppendLog    InputMode = "append_log"
)

type DeleteMode string

const (
	DeleteIgnore     DeleteMode = "ignore"
	DeleteTombstone  DeleteMode = "tombstone"
	DeleteHardDelete DeleteMode = "hard_delete"
)

// Preset names the eleven supported model tags.
type Preset string

const (
	PeriodicSnapshot      Preset = "periodic_snapshot"
	FullMergeDedupe       Preset = "full_merge_dedupe"
	IncrementalMerge      Preset = "incremental_merge"
	SCDType2              Preset = "scd_type_2"
	EventLog              Preset = "event_log"
	CDCCurrent            Preset = "cdc_current"
	CDCCurrentTombstone   Preset = "cdc_current_tombstone"
	CDCCurrentHardDelete  Preset = "cdc_current_hard_delete"
	CDCHistory            Preset = "cdc_history"
	CDCHistoryTombstone   Preset = "cdc_history_tombstone"
	CDCHistoryHardDelete  Preset = "cdc_history_hard_delete"
)

// Axes is the resolved four-axis tuple a preset expands to. A nil
// *DeleteMode field means the preset does not constrain delete_mode.
type Axes struct {
	EntityKind  EntityKind
	HistoryMode HistoryMode
	InputMode   InputMode
	DeleteMode  *DeleteMode
}

func deleteMode(d DeleteMode) *DeleteMode { return &d }

var presetTable = map[Preset]Axes{
	PeriodicSnapshot:     {EntityState, HistoryCurrentOnly, InputReplaceDaily, nil},
	FullMergeDedupe:      {EntityState, HistoryCurrentOnly, InputAppendLog, nil},
	IncrementalMerge:     {EntityState, HistoryCurrentOnly, InputAppendLog, nil},
	SCDType2:             {EntityState, HistoryFullHistory, InputAppendLog, nil},
	EventLog:             {EntityEvent, HistoryCurrentOnly, InputAppendLog, nil},
	CDCCurrent:           {EntityState, HistoryCurrentOnly, InputAppendLog, deleteMode(DeleteIgnore)},
	CDCCurrentTombstone:  {EntityState, HistoryCurrentOnly, InputAppendLog, deleteMode(DeleteTombstone)},
	CDCCurrentHardDelete: {EntityState, HistoryCurrentOnly, InputAppendLog, deleteMode(DeleteHardDelete)},
	CDCHistory:           {EntityState, HistoryFullHistory, InputAppendLog, deleteMode(DeleteIgnore)},
	CDCHistoryTombstone:  {EntityState, HistoryFullHistory, InputAppendLog, deleteMode(DeleteTombstone)},
	CDCHistoryHardDelete: {EntityState, HistoryFullHistory, InputAppendLog, deleteMode(DeleteHardDelete)},
}

// IsCDC reports whether preset p requires a CDC Bronze load_pattern.
func (p Preset) IsCDC() bool {
	return len(p) >= 4 && p[:4] == "cdc_"
}

// Lookup returns the axes for a known preset.
func Lookup(p Preset) (Axes, error) {
	axes, ok := presetTable[p]
	if !ok {
		return Axes{}, fmt.Errorf("model: unknown preset %q", p)
	}
	return axes, nil
}

// Explicit carries the Silver configuration's own axis values, each nil
// when left unset in YAML (so a preset default can fill it in).
type Explicit struct {
	EntityKind  *EntityKind
	HistoryMode *HistoryMode
	InputMode   *InputMode
	DeleteMode  *DeleteMode
}

// Warning is a non-fatal compatibility note surfaced during resolution.
type Warning struct {
	Message string
}

// Resolve expands preset (if set) and overlays explicit fields on top,
// per spec.md 4.9: "explicit Silver fields take precedence over preset
// defaults". bronzeLoadPattern is used to detect CDC/snapshot mismatch
// warnings; it may be empty if unknown.
func Resolve(preset Preset, explicit Explicit, bronzeLoadPattern string) (Axes, []Warning, error) {
	var resolved Axes
	var warnings []Warning

	if preset != "" {
		axes, err := Lookup(preset)
		if err != nil {
			return Axes{}, nil, err
		}
		resolved = axes

		if preset.IsCDC() && bronzeLoadPattern != "" && bronzeLoadPattern != "cdc" {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("preset %q requires Bronze load_pattern=cdc, got %q", preset, bronzeLoadPattern),
			})
		}
		if !preset.IsCDC() && bronzeLoadPattern == "cdc" {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("preset %q paired with a CDC Bronze source: operation information will be lost", preset),
			})
		}
		if preset == PeriodicSnapshot && bronzeLoadPattern != "" && bronzeLoadPattern != "full_snapshot" {
			warnings = append(warnings, Warning{
				Message: "periodic_snapshot paired with a non-full-snapshot Bronze source: potential accumulation",
			})
		}
	}

	if explicit.EntityKind != nil {
		resolved.EntityKind = *explicit.EntityKind
	}
	if explicit.HistoryMode != nil {
		resolved.HistoryMode = *explicit.HistoryMode
	}
	if explicit.InputMode != nil {
		resolved.InputMode = *explicit.InputMode
	}
	if explicit.DeleteMode != nil {
		resolved.DeleteMode = explicit.DeleteMode
	}

	if resolved.EntityKind == "" {
		return Axes{}, warnings, fmt.Errorf("model: entity_kind is unresolved (no preset and no explicit value)")
	}

	return resolved, warnings, nil
}
