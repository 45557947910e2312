package aiengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `model_version: engine-v2
store:
  backend: sqlite
  path: /tmp/engine.db
retention: 1h
timeouts:
  predict: 500ms
feedback:
  alpha: 0.2
  retain_versions: 4
sparse_threshold: 25
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ModelVersion != "engine-v2" {
		t.Errorf("model version = %q", config.ModelVersion)
	}
	if config.Store != StoreSQLite || config.SQLitePath != "/tmp/engine.db" {
		t.Errorf("store = %q path = %q", config.Store, config.SQLitePath)
	}
	if config.Retention != time.Hour {
		t.Errorf("retention = %v", config.Retention)
	}
	if config.Timeouts.Predict != 500*time.Millisecond {
		t.Errorf("predict timeout = %v", config.Timeouts.Predict)
	}
	// Unset fields keep their defaults.
	if config.Timeouts.Encode != DefaultConfig().Timeouts.Encode {
		t.Errorf("encode timeout = %v, want default", config.Timeouts.Encode)
	}
	if config.Feedback.Alpha != 0.2 || config.Feedback.RetainVersions != 4 {
		t.Errorf("feedback config = %+v", config.Feedback)
	}
	if config.SparseThreshold != 25 {
		t.Errorf("sparse threshold = %d", config.SparseThreshold)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "retention: fortnight\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
