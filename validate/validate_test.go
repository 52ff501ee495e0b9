package validate

import (
	"strings"
	"testing"

	"github.com/withobsrvr/medallion-foundry/model"
	"github.com/withobsrvr/medallion-foundry/pipeline"
)

func basePipeline() *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Name: "orders",
		Bronze: pipeline.BronzeConfig{
			System:      "crm",
			Entity:      "orders",
			SourceType:  pipeline.SourceFileCSV,
			LoadPattern: pipeline.LoadFullSnapshot,
			SourcePath:  "s3://bucket/orders.csv",
			TargetPath:  "s3://bucket/bronze/orders",
		},
		Silver: pipeline.SilverConfig{
			System:          "crm",
			Entity:          "orders",
			TargetPath:      "s3://bucket/silver/orders",
			NaturalKeys:     []string{"order_id"},
			ChangeTimestamp: "order_ts",
			EntityKind:      model.EntityState,
			HistoryMode:     model.HistoryCurrentOnly,
		},
	}
	p.Silver.Normalize()
	return p
}

func TestStructuralPassesOnValidConfig(t *testing.T) {
	if issues := Structural(basePipeline()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestStructuralCatchesMissingTargetPath(t *testing.T) {
	p := basePipeline()
	p.Bronze.TargetPath = ""
	issues := Structural(p)
	if !containsSubstring(issues, "target_path") {
		t.Fatalf("expected a target_path issue, got %v", issues)
	}
}

func TestStructuralCatchesMissingNaturalKeysUnlessPeriodicSnapshot(t *testing.T) {
	p := basePipeline()
	p.Silver.NaturalKeys = nil
	p.Silver.Normalize()
	issues := Structural(p)
	if !containsSubstring(issues, "natural_keys") {
		t.Fatalf("expected a natural_keys issue, got %v", issues)
	}

	p.Silver.Model = model.PeriodicSnapshot
	issues = Structural(p)
	if containsSubstring(issues, "natural_keys") {
		t.Fatal("periodic_snapshot must permit missing natural_keys")
	}
}

func TestStructuralCatchesMutuallyExclusiveAttributesAndExclude(t *testing.T) {
	p := basePipeline()
	p.Silver.Attributes = []string{"a"}
	p.Silver.ExcludeColumns = []string{"b"}
	issues := Structural(p)
	if !containsSubstring(issues, "mutually exclusive") {
		t.Fatalf("expected mutual exclusion issue, got %v", issues)
	}
}

func TestStructuralCatchesCDCPresetWithNonCDCBronze(t *testing.T) {
	p := basePipeline()
	p.Silver.Model = model.CDCCurrent
	issues := Structural(p)
	if !containsSubstring(issues, "requires bronze load_pattern=cdc") {
		t.Fatalf("expected cdc preset mismatch issue, got %v", issues)
	}
}

func TestStructuralCatchesUnknownEnum(t *testing.T) {
	p := basePipeline()
	p.Bronze.SourceType = "file_xml"
	issues := Structural(p)
	if !containsSubstring(issues, "unknown source_type") {
		t.Fatalf("expected unknown source_type issue, got %v", issues)
	}
}

func TestWarningsFlagsFullSnapshotWithWatermark(t *testing.T) {
	p := basePipeline()
	p.Bronze.WatermarkColumn = "updated_at"
	warnings := Warnings(p)
	if !containsSubstring(warnings, "has no effect") {
		t.Fatalf("expected full_snapshot/watermark_column warning, got %v", warnings)
	}
}

func TestWarningsFlagsEventWithFullHistory(t *testing.T) {
	p := basePipeline()
	p.Silver.EntityKind = model.EntityEvent
	p.Silver.HistoryMode = model.HistoryFullHistory
	warnings := Warnings(p)
	if !containsSubstring(warnings, "event entities") {
		t.Fatalf("expected event/full_history warning, got %v", warnings)
	}
}

func containsSubstring(items []string, substr string) bool {
	for _, s := range items {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
