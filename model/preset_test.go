package model

import "testing"

func TestLookupAllElevenPresets(t *testing.T) {
	presets := []Preset{
		PeriodicSnapshot, FullMergeDedupe, IncrementalMerge, SCDType2, EventLog,
		CDCCurrent, CDCCurrentTombstone, CDCCurrentHardDelete,
		CDCHistory, CDCHistoryTombstone, CDCHistoryHardDelete,
	}
	if len(presets) != 11 {
		t.Fatalf("expected 11 presets in test table, got %d", len(presets))
	}
	for _, p := range presets {
		if _, err := Lookup(p); err != nil {
			t.Fatalf("Lookup(%s) failed: %v", p, err)
		}
	}
}

func TestSCDType2ExpandsToFullHistory(t *testing.T) {
	axes, err := Lookup(SCDType2)
	if err != nil {
		t.Fatal(err)
	}
	if axes.HistoryMode != HistoryFullHistory || axes.InputMode != InputAppendLog {
		t.Fatalf("unexpected axes for scd_type_2: %+v", axes)
	}
	if axes.DeleteMode != nil {
		t.Fatal("scd_type_2 must not constrain delete_mode")
	}
}

func TestCDCPresetsRequireCDCDeleteMode(t *testing.T) {
	axes, err := Lookup(CDCCurrentTombstone)
	if err != nil {
		t.Fatal(err)
	}
	if axes.DeleteMode == nil || *axes.DeleteMode != DeleteTombstone {
		t.Fatalf("expected tombstone delete_mode, got %+v", axes.DeleteMode)
	}
}

func TestResolveExplicitOverridesPreset(t *testing.T) {
	eventKind := EntityEvent
	axes, _, err := Resolve(PeriodicSnapshot, Explicit{EntityKind: &eventKind}, "full_snapshot")
	if err != nil {
		t.Fatal(err)
	}
	if axes.EntityKind != EntityEvent {
		t.Fatalf("expected explicit entity_kind to win, got %s", axes.EntityKind)
	}
	if axes.InputMode != InputReplaceDaily {
		t.Fatalf("expected preset input_mode to remain, got %s", axes.InputMode)
	}
}

func TestResolveWarnsOnCDCPresetWithNonCDCBronze(t *testing.T) {
	_, warnings, err := Resolve(CDCCurrent, Explicit{}, "incremental_append")
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for cdc preset paired with non-cdc bronze")
	}
}

func TestResolveWarnsOnNonCDCPresetWithCDCBronze(t *testing.T) {
	_, warnings, err := Resolve(FullMergeDedupe, Explicit{}, "cdc")
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning when operation information would be lost")
	}
}

func TestResolvePeriodicSnapshotWarnsOnAccumulation(t *testing.T) {
	_, warnings, err := Resolve(PeriodicSnapshot, Explicit{}, "incremental_append")
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected accumulation warning")
	}
}

func TestResolveWithoutPresetRequiresExplicitEntityKind(t *testing.T) {
	if _, _, err := Resolve("", Explicit{}, ""); err == nil {
		t.Fatal("expected error when neither preset nor explicit entity_kind is set")
	}
}

func TestResolveUnknownPreset(t *testing.T) {
	if _, _, err := Resolve("not_a_real_preset", Explicit{}, ""); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
