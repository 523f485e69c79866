package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleJSONL = `{"kind":"project","data":{"id":"p1","name":"Home"}}
{"kind":"task_list","data":{"id":"l1","project_id":"p1","name":"Chores"}}
{"kind":"task","data":{"id":"t1","project_id":"p1","list_id":"l1","title":"Paint fence","priority":2}}
`

// run executes the command line against dataDir and returns its output.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestImportExport(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(t.TempDir(), "in.jsonl")
	if err := os.WriteFile(in, []byte(sampleJSONL), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, dir, "import", in, "--dry-run=true")
	if err != nil {
		t.Fatalf("import --dry-run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Validated 3 records") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = run(t, dir, "export", "p1", "--format", "jsonl", "--output", "")
	if err == nil {
		t.Fatalf("export after dry run succeeded, want project not found:\n%s", out)
	}

	out, err = run(t, dir, "import", in, "--dry-run=false")
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 3 records") {
		t.Errorf("import output = %q", out)
	}

	out, err = run(t, dir, "export", "p1", "--format", "jsonl", "--output", "")
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	if n := strings.Count(out, "\n"); n != 3 {
		t.Errorf("export has %d lines, want 3:\n%s", n, out)
	}
	for _, want := range []string{`"kind":"project"`, `"kind":"task_list"`, `"title":"Paint fence"`} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %s:\n%s", want, out)
		}
	}

	file := filepath.Join(t.TempDir(), "p1.yaml")
	if out, err := run(t, dir, "export", "p1", "--format", "yaml", "--output", file); err != nil {
		t.Fatalf("yaml export failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "title: Paint fence") {
		t.Errorf("yaml export =\n%s", data)
	}
}

func TestImport_BadRecords(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(t.TempDir(), "bad.jsonl")
	bad := sampleJSONL + `{"kind":"widget","data":{}}` + "\n"
	if err := os.WriteFile(in, []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, dir, "import", in, "--dry-run=false")
	if err == nil {
		t.Fatalf("import succeeded, want an error:\n%s", out)
	}
	if !strings.Contains(out, `line 4: unknown record kind "widget"`) {
		t.Errorf("import output = %q", out)
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if _, err := run(t, t.TempDir(), "export", "p1", "--format", "csv", "--output", ""); err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v, want unknown format", err)
	}
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	for _, want := range []string{"data_dir = " + `"` + dir + `"`, "[relational]", "[document]", `level = "error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %s:\n%s", want, out)
		}
	}
}

func TestMigrateAndStatus(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "schema is at version") {
		t.Errorf("first migrate output = %q", out)
	}

	out, err = run(t, dir, "migrate")
	if err != nil {
		t.Fatalf("second migrate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Schema is up to date") {
		t.Errorf("second migrate output = %q", out)
	}

	out, err = run(t, dir, "status", "--metrics=false")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Schema version:", "tasks", "projects"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %s:\n%s", want, out)
		}
	}
}

func TestSyncRebuild(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(t.TempDir(), "in.jsonl")
	if err := os.WriteFile(in, []byte(sampleJSONL), 0600); err != nil {
		t.Fatal(err)
	}
	if out, err := run(t, dir, "import", in, "--dry-run=false"); err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}

	out, err := run(t, dir, "sync", "rebuild")
	if err != nil {
		t.Fatalf("sync rebuild failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "✓") {
		t.Errorf("rebuild output = %q", out)
	}
}
