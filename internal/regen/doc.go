// Package regen executes regeneration plans.
//
// A Regenerator drives the external workflow tool through a plan's steps
// in literal order: clean stale files, run tool subcommands, apply par
// edits, and snapshot the tool's output file under fixture names. It is
// strictly sequential; each invocation blocks until the tool exits.
//
// Verify re-runs a plan in a scratch directory and compares the produced
// fixtures against an existing fixture set, which is the tool's only
// testable property: output equivalence against a recorded snapshot.
package regen
