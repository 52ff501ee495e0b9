package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/withobsrvr/medallion-foundry/model"
)

func TestResolveSourcePathsReplaceDailyReturnsTemplateVerbatim(t *testing.T) {
	paths, err := ResolveSourcePaths("/data/system=crm/entity=orders/dt=2025-01-15/", model.InputReplaceDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "/data/system=crm/entity=orders/dt=2025-01-15/" {
		t.Fatalf("expected verbatim path, got %v", paths)
	}
}

func TestResolveSourcePathsAppendLogExpandsGlob(t *testing.T) {
	root := t.TempDir()
	for _, dt := range []string{"2025-01-14", "2025-01-15"} {
		dir := filepath.Join(root, "dt="+dt)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	template := filepath.Join(root, "dt=2025-01-15")
	paths, err := ResolveSourcePaths(template, model.InputAppendLog)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected both date partitions, got %v", paths)
	}
}

func TestResolveSourcePathsAppendLogPassesThroughNonDatePartitioned(t *testing.T) {
	paths, err := ResolveSourcePaths("/data/static/orders.csv", model.InputAppendLog)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "/data/static/orders.csv" {
		t.Fatal("expected pass-through for non-date-partitioned path")
	}
}

func TestResolveInputModeInheritsFromBronzeWhenSilverUnset(t *testing.T) {
	mode := ResolveInputMode("", model.InputAppendLog, model.EntityState)
	if mode != model.InputAppendLog {
		t.Fatalf("expected inherited append_log, got %s", mode)
	}
}

func TestResolveInputModeDefaultsByEntityKindWhenBothUnset(t *testing.T) {
	if mode := ResolveInputMode("", "", model.EntityState); mode != model.InputReplaceDaily {
		t.Fatalf("expected replace_daily default for state, got %s", mode)
	}
	if mode := ResolveInputMode("", "", model.EntityEvent); mode != model.InputAppendLog {
		t.Fatalf("expected append_log default for event, got %s", mode)
	}
}

func TestVerifyChecksumsSkipModeIgnoresMissingManifest(t *testing.T) {
	dir := t.TempDir()
	if err := VerifyChecksums(dir, VerifySkip); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyChecksumsPassesOnMatchingManifest(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello world")
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	checksums, err := computeChecksums(dir, []string{"data.parquet"})
	if err != nil {
		t.Fatal(err)
	}
	if err := writeChecksums(dir, checksums); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksums(dir, VerifyStrict); err != nil {
		t.Fatalf("expected matching checksums to pass, got %v", err)
	}
}

func TestVerifyChecksumsStrictFailsOnMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	checksums, err := computeChecksums(dir, []string{"data.parquet"})
	if err != nil {
		t.Fatal(err)
	}
	if err := writeChecksums(dir, checksums); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), []byte("tampered!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksums(dir, VerifyStrict); err == nil {
		t.Fatal("expected checksum mismatch to be fatal under strict mode")
	}
}

func TestVerifyChecksumsWarnModeToleratesMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	checksums, err := computeChecksums(dir, []string{"data.parquet"})
	if err != nil {
		t.Fatal(err)
	}
	if err := writeChecksums(dir, checksums); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), []byte("tampered!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyChecksums(dir, VerifyWarn); err != nil {
		t.Fatalf("expected warn mode to tolerate mismatch, got %v", err)
	}
}
