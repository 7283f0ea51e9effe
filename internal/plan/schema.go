package plan

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE []byte

// Error codes for schema validation output.
const (
	ErrCodeGeneric = "E001" // Generic/unknown error
	ErrCodeRead    = "E002" // Plan file not readable
	ErrCodeDecode  = "E003" // Plan is not valid YAML
	ErrCodeSchema  = "E004" // Plan violates the schema
)

// SchemaError is a single schema validation finding.
type SchemaError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (e SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateSchema checks raw plan YAML against the embedded CUE schema.
// Returns nil when the document conforms. Findings are collected rather
// than fail-fast so a single run surfaces every violation.
func ValidateSchema(data []byte) []SchemaError {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []SchemaError{{Code: ErrCodeDecode, Message: fmt.Sprintf("decoding plan: %v", err)}}
	}
	if doc == nil {
		return []SchemaError{{Code: ErrCodeDecode, Message: "plan document is empty"}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE)
	if err := schema.Err(); err != nil {
		// The embedded schema is fixed at build time.
		panic(fmt.Sprintf("plan: embedded schema invalid: %v", err))
	}

	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return []SchemaError{{Code: ErrCodeDecode, Message: fmt.Sprintf("encoding plan document: %v", err)}}
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var findings []SchemaError
		for _, e := range cueerrors.Errors(err) {
			findings = append(findings, SchemaError{
				Code:    ErrCodeSchema,
				Message: e.Error(),
				Line:    lineOf(e.Position()),
			})
		}
		if len(findings) == 0 {
			findings = append(findings, SchemaError{Code: ErrCodeSchema, Message: err.Error()})
		}
		return findings
	}
	return nil
}

func lineOf(pos token.Pos) int {
	if !pos.IsValid() {
		return 0
	}
	return pos.Line()
}
