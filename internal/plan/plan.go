package plan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan describes a fixture regeneration run.
type Plan struct {
	// Name identifies the plan in logs and run history.
	Name string `yaml:"name"`

	// Tool is the workflow tool binary to invoke (looked up on PATH
	// unless an explicit path is given).
	Tool string `yaml:"tool"`

	// Workfile is the file the tool writes in the working directory.
	// Snapshots copy this file.
	Workfile string `yaml:"workfile"`

	// Clean lists glob patterns removed from the working directory
	// before the first step runs.
	Clean []string `yaml:"clean,omitempty"`

	// Steps execute in literal document order.
	Steps []Step `yaml:"steps"`
}

// StepKind discriminates the three step forms.
type StepKind string

const (
	KindRun      StepKind = "run"
	KindPar      StepKind = "par"
	KindSnapshot StepKind = "snapshot"
)

// Step is one entry in a plan. Exactly one of Run or Par may be set;
// a step with neither must set Snapshot.
type Step struct {
	// Run is a tool subcommand with space-separated arguments,
	// e.g. "configure -r".
	Run string `yaml:"run,omitempty"`

	// Par sets a single named parameter in the live workfile.
	// The map must contain exactly one key.
	Par map[string]string `yaml:"par,omitempty"`

	// Snapshot copies the workfile to this fixture name after the
	// step's command (if any) completes.
	Snapshot string `yaml:"snapshot,omitempty"`
}

// Kind reports the step form. Undefined for invalid steps; call
// Plan.Validate first.
func (s Step) Kind() StepKind {
	switch {
	case s.Run != "":
		return KindRun
	case len(s.Par) > 0:
		return KindPar
	default:
		return KindSnapshot
	}
}

// ParPair returns the single (name, value) pair of a par step.
func (s Step) ParPair() (name, value string) {
	for k, v := range s.Par {
		return k, v
	}
	return "", ""
}

// Command returns the tool argument vector for the step, or nil for a
// snapshot-only step.
func (s Step) Command() []string {
	switch s.Kind() {
	case KindRun:
		return strings.Fields(s.Run)
	case KindPar:
		name, value := s.ParPair()
		return []string{"par", "-p", name, value}
	default:
		return nil
	}
}

// Load reads and decodes a plan file, then validates it structurally.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes plan YAML and validates it structurally.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate performs structural checks on the plan.
//
// Rules:
//   - tool and workfile must be set
//   - at least one step
//   - each step is exactly one of run/par/snapshot (run may carry a snapshot)
//   - par steps set exactly one parameter
//   - snapshot names are unique and distinct from the workfile
func (p *Plan) Validate() error {
	if p.Tool == "" {
		return fmt.Errorf("plan: tool is required")
	}
	if p.Workfile == "" {
		return fmt.Errorf("plan: workfile is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan: at least one step is required")
	}

	seen := map[string]int{}
	for i, s := range p.Steps {
		if s.Run != "" && len(s.Par) > 0 {
			return fmt.Errorf("plan: step %d: run and par are mutually exclusive", i+1)
		}
		if len(s.Par) > 1 {
			return fmt.Errorf("plan: step %d: par must set exactly one parameter, got %d", i+1, len(s.Par))
		}
		if len(s.Par) == 1 && s.Snapshot != "" {
			return fmt.Errorf("plan: step %d: par steps cannot snapshot; add a separate snapshot step", i+1)
		}
		if s.Run == "" && len(s.Par) == 0 && s.Snapshot == "" {
			return fmt.Errorf("plan: step %d: empty step", i+1)
		}
		if len(s.Par) == 1 {
			name, _ := s.ParPair()
			if name == "" {
				return fmt.Errorf("plan: step %d: par name must be non-empty", i+1)
			}
		}
		if s.Snapshot != "" {
			if s.Snapshot == p.Workfile {
				return fmt.Errorf("plan: step %d: snapshot %q shadows the workfile", i+1, s.Snapshot)
			}
			if prev, dup := seen[s.Snapshot]; dup {
				return fmt.Errorf("plan: step %d: snapshot %q already produced by step %d", i+1, s.Snapshot, prev)
			}
			seen[s.Snapshot] = i + 1
		}
	}
	return nil
}

// Snapshots returns the fixture names the plan produces, in step order.
func (p *Plan) Snapshots() []string {
	var names []string
	for _, s := range p.Steps {
		if s.Snapshot != "" {
			names = append(names, s.Snapshot)
		}
	}
	return names
}
