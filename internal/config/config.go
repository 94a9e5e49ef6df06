// Package config defines the canonical, YAML-serializable run configuration
// for the extraction tool. It is intentionally small and explicit so that
// runs can be loaded from disk and passed through the program without
// additional glue code.
//
// A run file names an ordered list of tasks; each task binds a profile, an
// input directory, and an optional set of filter values:
//
//	description: crossref members
//	tasks:
//	  - description: member 311
//	    profile: profiles/crossref.json
//	    input_dir: /data/crossref
//	    filters:
//	      member: "311"
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Run is the top-level object decoded from a run configuration file. Tasks
// execute sequentially; their outputs merge into one CSV set.
type Run struct {
	// Description labels the run in logs. Optional.
	Description string `yaml:"description"`

	// Tasks lists the extraction tasks in execution order.
	Tasks []Task `yaml:"tasks"`
}

// Task describes a single extraction task.
type Task struct {
	// Description labels the task in logs. Optional.
	Description string `yaml:"description"`

	// Profile is the path to the profile JSON driving the extraction.
	Profile string `yaml:"profile"`

	// InputDir is the directory scanned for *.jsonl / *.jsonl.gz inputs.
	InputDir string `yaml:"input_dir"`

	// Filters binds profile filter cli_args to literal string values. Only
	// bound filters are active; a key with no matching profile filter is a
	// configuration error.
	Filters map[string]string `yaml:"filters"`
}

// Load reads and decodes a run configuration file. Unknown YAML fields are
// rejected so typos surface before any worker starts.
func Load(path string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var r Run
	if err := dec.Decode(&r); err != nil {
		return Run{}, fmt.Errorf("decode run config %s: %w", path, err)
	}
	return r, nil
}
