package plan

import (
	_ "embed"
	"fmt"
)

// The default plan reproduces the historical fixture-regeneration script:
// wipe stale YAML files, snapshot the tool's setup and configure output,
// then fill in the parameter set used by the test suite.
//
//go:embed default.yaml
var defaultYAML []byte

// Default returns the embedded default plan.
//
// The returned plan is a fresh copy; callers may mutate it.
func Default() *Plan {
	p, err := Parse(defaultYAML)
	if err != nil {
		// The embedded plan is fixed at build time.
		panic(fmt.Sprintf("plan: embedded default plan invalid: %v", err))
	}
	return p
}

// DefaultYAML returns the raw YAML of the embedded default plan.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}
