// write_test.go tests [Write] and [WriteJSON] for correctness, overwrite
// behavior, and cleanup of temp files on failure.

package atomicfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteBasic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	data := []byte(`{"Celeste":{}}`)

	if err := Write(path, data, 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestWriteOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overwrite.json")

	if err := Write(path, []byte("original"), 0o644); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, []byte("updated"), 0o644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "updated" {
		t.Errorf("content = %q, want %q", got, "updated")
	}
}

func TestWriteCleanupOnFailure(t *testing.T) {
	// Writing into a non-existent directory must fail without leaving temp
	// files behind in any directory that does exist.
	dir := t.TempDir()
	badPath := filepath.Join(dir, "no-such-dir", "file.json")

	if err := Write(badPath, []byte("data"), 0o644); err == nil {
		t.Fatal("expected error writing to non-existent directory")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if matched, _ := filepath.Match("*.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")

	in := map[string]any{"Hades": map[string]any{"steam_appid": 1145360}}
	if err := WriteJSON(path, in, 0o644); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var out map[string]map[string]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if out["Hades"]["steam_appid"] != 1145360 {
		t.Errorf("round-trip mismatch: %v", out)
	}

	// Output should be indented for hand editing.
	if len(data) > 0 && data[0] == '{' && data[1] != '\n' {
		t.Errorf("expected indented JSON, got %q", data[:min(40, len(data))])
	}
}

func TestWriteJSONUnmarshalable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteJSON(path, make(chan int), 0o644); err == nil {
		t.Fatal("expected error marshaling a channel")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should not exist after failed marshal")
	}
}
