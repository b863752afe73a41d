package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
jobs:
  - name: daily-csv
    interval: 15m
    params:
      ftpHost: ftp.example.com
      serverPort: 2121
      localDirectoryPath: /data/in
      fileExtensions: csv,txt
  - name: partner-sftp
    params:
      ftpHost: sftp.partner.net
      sshPrivateKeyPath: /keys/partner
      localDirectoryPath: /data/partner
      fileExtensions: xml
  - name: retired
    disabled: true
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(sample), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	inv, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(inv.Jobs))
	}

	daily, ok := inv.Find("daily-csv")
	if !ok {
		t.Fatal("daily-csv not found")
	}
	if daily.Interval != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", daily.Interval)
	}
	if daily.Params["serverPort"] != "2121" {
		t.Fatalf("numeric params should decode as strings, got %q", daily.Params["serverPort"])
	}

	partner, _ := inv.Find("partner-sftp")
	if partner.Interval != DefaultInterval {
		t.Fatalf("expected default interval, got %v", partner.Interval)
	}

	retired, _ := inv.Find("retired")
	if retired.Params == nil {
		t.Fatal("params should default to an empty map")
	}

	if got := len(inv.Enabled()); got != 2 {
		t.Fatalf("expected 2 enabled jobs, got %d", got)
	}
	if _, ok := inv.Find("missing"); ok {
		t.Fatal("unexpected job found")
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing name":   "jobs:\n  - interval: 1h\n",
		"duplicate name": "jobs:\n  - name: a\n  - name: a\n",
		"bad interval":   "jobs:\n  - name: a\n    interval: soon\n",
		"zero interval":  "jobs:\n  - name: a\n    interval: 0s\n",
		"bad yaml":       "jobs: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
