package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &PipelineConfig{
		Name:  "assembly",
		Slots: 8,
		Stages: []StageConfig{
			{Name: "align", Script: "align.sh"},
		},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded PipelineConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.Name != "assembly" || len(loaded.Stages) != 1 {
		t.Errorf("saved config mismatch: name=%q stages=%d", loaded.Name, len(loaded.Stages))
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &PipelineConfig{
		Name:  "assembly",
		Slots: 16,
		Grid: GridConfig{
			Command: []string{"qsub", "-sync", "y"},
			Queue:   "overnight",
		},
		Stages: []StageConfig{
			{
				Name:    "align",
				Script:  "align.sh",
				Inputs:  map[string]string{"reads": "reads.fa"},
				Outputs: map[string]string{"bam": "out.bam"},
				Parameters: map[string]any{
					"threads": 4,
				},
				Distributed: true,
				Slots:       4,
			},
			{
				Name:    "polish",
				Script:  "polish.sh",
				Inputs:  map[string]string{"bam": "out.bam"},
				Outputs: map[string]string{"fasta": "polished.fa"},
			},
		},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Name != "assembly" || loaded.Slots != 16 {
		t.Errorf("scalar mismatch: name=%q slots=%d", loaded.Name, loaded.Slots)
	}
	if loaded.Grid.Queue != "overnight" {
		t.Errorf("queue mismatch: got %q", loaded.Grid.Queue)
	}
	if len(loaded.Stages) != 2 {
		t.Fatalf("stages count = %d, want 2", len(loaded.Stages))
	}
	align := loaded.Stages[0]
	if !align.Distributed || align.Slots != 4 {
		t.Errorf("align stage mismatch: distributed=%v slots=%d", align.Distributed, align.Slots)
	}
	if align.Inputs["reads"] != "reads.fa" || align.Outputs["bam"] != "out.bam" {
		t.Errorf("align ports mismatch: %v / %v", align.Inputs, align.Outputs)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	if err := Save(&PipelineConfig{Name: "first"}, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := Save(&PipelineConfig{Name: "second"}, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded PipelineConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if loaded.Name != "second" {
		t.Errorf("Expected 'second', got %q", loaded.Name)
	}
}
