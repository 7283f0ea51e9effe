// Package plan defines the regeneration plan format.
//
// A plan describes how to rebuild a set of YAML parameter-file fixtures by
// driving an external workflow tool: which binary to run, which file it
// writes, which stale files to clean first, and an ordered list of steps.
//
// # Plan Format
//
// Plans are YAML documents:
//
//	name: seisflows-test-fixtures
//	tool: seisflows
//	workfile: parameters.yaml
//	clean:
//	  - "*.yaml"
//	steps:
//	  - run: setup
//	    snapshot: test_setup_parameters.yaml
//	  - run: configure -r
//	    snapshot: test_configure_parameters.yaml
//	  - par: { NTASK: "3" }
//	  - par: { NPROC: "1" }
//	  - snapshot: test_filled_parameters.yaml
//
// Each step is exactly one of:
//
//   - run: invoke a tool subcommand (space-separated arguments), optionally
//     snapshotting the workfile afterwards
//   - par: set a single named parameter in the live workfile
//     (invokes `<tool> par -p NAME VALUE`)
//   - snapshot: copy the current workfile to a fixture name
//
// Steps execute in literal document order. Parameter values are opaque
// strings; the workflow tool owns parameter typing and YAML semantics.
//
// Plans are validated twice: structurally (Plan.Validate) and against an
// embedded CUE schema (ValidateSchema) for position-aware error reporting.
package plan
