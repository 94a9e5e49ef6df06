package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRunFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_DecodeRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeRunFile(t, `
description: crossref members
tasks:
  - description: member 311
    profile: profiles/crossref.json
    input_dir: /data/crossref
    filters:
      member: "311"
  - description: openalex full
    profile: profiles/openalex.json
    input_dir: /data/openalex
`)

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if r.Description != "crossref members" {
		t.Fatalf("description = %q", r.Description)
	}
	if len(r.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(r.Tasks))
	}
	if got := r.Tasks[0].Filters["member"]; got != "311" {
		t.Fatalf("tasks[0].filters.member = %q, want 311", got)
	}
	if r.Tasks[1].Filters != nil {
		t.Fatalf("tasks[1].filters = %v, want nil", r.Tasks[1].Filters)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeRunFile(t, `
tasks:
  - profile: p.json
    input_dir: in
    inptu_dir: typo
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted unknown field, want error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on missing file succeeded, want error")
	}
}

func TestValidateRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		run       Run
		wantError bool
		wantPath  string
	}{
		{
			name:      "no tasks",
			run:       Run{},
			wantError: true,
			wantPath:  "tasks",
		},
		{
			name: "empty profile",
			run: Run{Tasks: []Task{
				{Description: "t", InputDir: "in"},
			}},
			wantError: true,
			wantPath:  "tasks[0].profile",
		},
		{
			name: "empty input dir",
			run: Run{Tasks: []Task{
				{Description: "t", Profile: "p.json"},
			}},
			wantError: true,
			wantPath:  "tasks[0].input_dir",
		},
		{
			name: "empty filter value is a warning only",
			run: Run{Tasks: []Task{
				{Description: "t", Profile: "p.json", InputDir: "in",
					Filters: map[string]string{"member": ""}},
			}},
			wantError: false,
			wantPath:  "tasks[0].filters.member",
		},
		{
			name: "valid",
			run: Run{Tasks: []Task{
				{Description: "t", Profile: "p.json", InputDir: "in",
					Filters: map[string]string{"member": "311"}},
			}},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := ValidateRun(tt.run)
			if got := HasError(issues); got != tt.wantError {
				t.Fatalf("HasError = %v, want %v (issues: %v)", got, tt.wantError, issues)
			}
			if tt.wantPath == "" {
				return
			}
			found := false
			for _, iss := range issues {
				if strings.HasPrefix(iss.Path, tt.wantPath) {
					found = true
				}
			}
			if !found {
				t.Fatalf("no issue at path %q (issues: %v)", tt.wantPath, issues)
			}
		})
	}
}
