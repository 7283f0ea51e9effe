package regen

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"sfregen/internal/plan"
)

// transcript renders the deterministic parts of a run (sequence, kind,
// command line, fixture names) for golden comparison. Run IDs, hashes
// and durations are excluded.
func transcript(result *RunResult) []byte {
	var b bytes.Buffer
	for _, s := range result.Steps {
		fmt.Fprintf(&b, "seq=%d kind=%s", s.Seq, s.Kind)
		if s.Command != "" {
			fmt.Fprintf(&b, " command=%q", s.Command)
		}
		if s.Snapshot != "" {
			fmt.Fprintf(&b, " snapshot=%s", s.Snapshot)
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// Pins the exact step sequence of the default plan. The fixture script
// this plan reproduces is order-sensitive: par edits apply to the live
// parameter file, so reordering changes the final fixture.
//
// To regenerate the golden file, run:
//
//	go test ./internal/regen -run TestRun_DefaultPlanTranscript -update
func TestRun_DefaultPlanTranscript(t *testing.T) {
	p := plan.Default()
	r := newTestRegenerator(t.TempDir(), &fakeTool{workfile: p.Workfile})

	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	require.True(t, result.OK)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "default_plan_transcript", transcript(result))
}
