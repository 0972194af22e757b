package resultstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystemSaveWritesRecord(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}

	id, err := store.Save(context.Background(), "user-1", "https://cdn/x.png", map[string]any{"provider": "synthetic"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatalf("save returned empty id")
	}

	raw, err := os.ReadFile(filepath.Join(store.BasePath(), "results", "user-1", id+".json"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var record fileRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.ID != id || record.UserID != "user-1" || record.ArtifactRef != "https://cdn/x.png" {
		t.Fatalf("record = %#v", record)
	}
	if record.Metadata["provider"] != "synthetic" {
		t.Fatalf("metadata = %v", record.Metadata)
	}
	if record.SavedAt.IsZero() {
		t.Fatalf("saved_at not set")
	}
}

func TestFilesystemSaveRequiresArtifactRef(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	if _, err := store.Save(context.Background(), "user-1", "", nil); err == nil {
		t.Fatalf("expected error for empty artifact ref")
	}
}

func TestFilesystemSaveTraversalUserID(t *testing.T) {
	base := t.TempDir()
	store, err := NewFilesystem(base)
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	if _, err := store.Save(context.Background(), "../../etc", "https://cdn/x.png", nil); err == nil {
		t.Fatalf("expected traversal user id to be rejected")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "etc")); !os.IsNotExist(err) {
		t.Fatalf("store escaped its root: %v", err)
	}
}

func TestNewFilesystemRequiresPath(t *testing.T) {
	if _, err := NewFilesystem("   "); err == nil {
		t.Fatalf("expected error for blank base path")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "results/u/x.json", want: "results/u/x.json"},
		{in: "./results/u/x.json", want: "results/u/x.json"},
		{in: "/results/u/x.json", want: "results/u/x.json"},
		{in: "results\\u\\x.json", want: "results/u/x.json"},
		{in: "../outside.json", wantErr: true},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
