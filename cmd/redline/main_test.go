package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redline/internal/catalog"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
raster_dir = %q
api_bind = ""

[fanout]
batch_pause_millis = 0
queue_retry_backoff_millis = 0
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "rasters"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeManifest(t *testing.T, dir, revisionID string, sheets [][2]string) string {
	t.Helper()
	manifest := catalog.Manifest{RevisionID: revisionID}
	for i, sheet := range sheets {
		manifest.Entities = append(manifest.Entities, catalog.ManifestEntity{
			ID:          fmt.Sprintf("%s-%d", revisionID, i),
			Kind:        "sheet",
			Index:       i,
			SheetNumber: sheet[0],
			Title:       sheet[1],
		})
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	path := filepath.Join(dir, revisionID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestConfigShowPrintsSample(t *testing.T) {
	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") || !strings.Contains(out, "[alignment]") {
		t.Fatalf("sample config missing sections:\n%s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("init output missing target path: %s", out)
	}
	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatalf("second init without --overwrite succeeded")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestImportCompareFanoutRoundTrip(t *testing.T) {
	cfgPath := writeTestConfig(t)
	dir := t.TempDir()
	leftManifest := writeManifest(t, dir, "rev-a", [][2]string{{"A-101", "Plan"}, {"A-102", "Plan"}})
	rightManifest := writeManifest(t, dir, "rev-b", [][2]string{{"A101", "Plan"}, {"A-103", "Plan"}})

	out, err := runCLI(t, "--config", cfgPath, "import", leftManifest, rightManifest)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 2 entities for revision rev-a") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "compare", "rev-a", "rev-b")
	if err != nil {
		t.Fatalf("compare: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created comparison job 1") {
		t.Fatalf("unexpected compare output:\n%s", out)
	}
	if !strings.Contains(out, "Queued:            1") {
		t.Fatalf("expected one queued pair:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "fanout", "1")
	if err != nil {
		t.Fatalf("fanout: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Skipped duplicate: 1") {
		t.Fatalf("rerun fanout should skip the existing pair:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "sheet_pair") || !strings.Contains(out, "revision_compare") {
		t.Fatalf("jobs list missing expected rows:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "jobs", "health")
	if err != nil {
		t.Fatalf("jobs health: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Total:        2") {
		t.Fatalf("unexpected health output:\n%s", out)
	}
}

func TestAlignPreviewValidatesPointCount(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "align", "preview",
		"--left", "0,0;1,1",
		"--right", "0,0;1,0;0,1",
	)
	if err == nil {
		t.Fatalf("two-point preview succeeded, want validation error")
	}
	if !strings.Contains(err.Error(), "exactly 3 points") {
		t.Fatalf("err = %v, want point-count validation", err)
	}
}
