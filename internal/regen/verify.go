package regen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sfregen/internal/params"
	"sfregen/internal/plan"
)

// FixtureStatus classifies one fixture comparison.
type FixtureStatus string

const (
	StatusMatch    FixtureStatus = "match"
	StatusMismatch FixtureStatus = "mismatch"
	// StatusMissing means the fixture is absent from the directory
	// being verified (it was produced by the fresh run but never
	// committed, or was deleted).
	StatusMissing FixtureStatus = "missing"
	// StatusNotProduced means the fresh run failed before producing
	// the fixture.
	StatusNotProduced FixtureStatus = "not_produced"
)

// FixtureResult is the comparison outcome for one fixture name.
type FixtureResult struct {
	Name   string        `json:"name"`
	Status FixtureStatus `json:"status"`
}

// VerifyResult reports a full verification.
type VerifyResult struct {
	Run      *RunResult      `json:"run"`
	Fixtures []FixtureResult `json:"fixtures"`
	OK       bool            `json:"ok"`
}

// Verify re-runs the plan in the Regenerator's directory (a scratch
// directory) and compares each produced fixture against the same-named
// file in fixturesDir.
//
// Comparison is canonical by default (params.Equal): NFC-normalized,
// comment-insensitive. Strict switches to byte equality.
func (r *Regenerator) Verify(ctx context.Context, p *plan.Plan, fixturesDir string, strict bool) (*VerifyResult, error) {
	runResult, err := r.Run(ctx, p)
	if err != nil {
		return &VerifyResult{Run: runResult}, err
	}

	vr := &VerifyResult{Run: runResult, OK: runResult.OK}

	produced := map[string]bool{}
	for _, name := range runResult.Fixtures {
		produced[name] = true
	}

	for _, name := range p.Snapshots() {
		fr := FixtureResult{Name: name}
		switch {
		case !produced[name]:
			fr.Status = StatusNotProduced
		default:
			status, err := compareFixture(
				filepath.Join(r.Dir, name),
				filepath.Join(fixturesDir, name),
				strict,
			)
			if err != nil {
				return vr, fmt.Errorf("comparing %s: %w", name, err)
			}
			fr.Status = status
		}
		if fr.Status != StatusMatch {
			vr.OK = false
		}
		vr.Fixtures = append(vr.Fixtures, fr)
	}
	return vr, nil
}

func compareFixture(freshPath, recordedPath string, strict bool) (FixtureStatus, error) {
	fresh, err := os.ReadFile(freshPath)
	if err != nil {
		return "", err
	}
	recorded, err := os.ReadFile(recordedPath)
	if os.IsNotExist(err) {
		return StatusMissing, nil
	}
	if err != nil {
		return "", err
	}

	if strict {
		if bytes.Equal(fresh, recorded) {
			return StatusMatch, nil
		}
		return StatusMismatch, nil
	}
	if params.Equal(fresh, recorded) {
		return StatusMatch, nil
	}
	return StatusMismatch, nil
}
