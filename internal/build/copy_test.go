package build

import (
	"strings"
	"testing"
)

func TestParseCopy(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		workdir  string
		wantSrc  string
		wantDest string
		wantErr  bool
	}{
		{
			name:     "absolute dest",
			entry:    "app/ /srv/app",
			wantSrc:  "app/",
			wantDest: "/srv/app",
		},
		{
			name:     "relative dest joined with workdir",
			entry:    "worker_entry.py worker_entry.py",
			workdir:  "/worker",
			wantSrc:  "worker_entry.py",
			wantDest: "/worker/worker_entry.py",
		},
		{
			name:    "relative dest without workdir",
			entry:   "src dest",
			wantErr: true,
		},
		{
			name:    "missing destination",
			entry:   "src",
			wantErr: true,
		},
		{
			name:    "too many tokens",
			entry:   "a b c",
			wantErr: true,
		},
		{
			name:    "empty",
			entry:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest, err := parseCopy(tt.entry, tt.workdir)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCopy(%q) succeeded, want error", tt.entry)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCopy(%q) failed: %v", tt.entry, err)
			}
			if src != tt.wantSrc || dest != tt.wantDest {
				t.Fatalf("parseCopy(%q) = (%q, %q), want (%q, %q)", tt.entry, src, dest, tt.wantSrc, tt.wantDest)
			}
		})
	}
}

func TestWriteFileToTarMissingFile(t *testing.T) {
	err := writeFileToTar(nil, "/nonexistent/file", "file")
	if err == nil {
		t.Fatal("writeFileToTar succeeded on a missing file")
	}
	if !strings.Contains(err.Error(), "nonexistent") {
		t.Fatalf("error %q does not mention the path", err)
	}
}
