package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sfregen/internal/plan"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []plan.SchemaError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a plan without executing it",
		Long: `Validate a regeneration plan file without invoking the workflow tool.

Checks the document against the plan schema (field names and types,
with line positions) and then applies structural rules: single-key par
steps, unique snapshot names, non-empty step list.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, planPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(planPath)
	if err != nil {
		return outputValidateError(formatter, plan.ErrCodeRead, fmt.Sprintf("reading plan: %v", err))
	}

	findings := plan.ValidateSchema(data)
	if len(findings) > 0 {
		return outputValidationErrors(formatter, findings)
	}

	// Schema passed; apply the structural rules the schema cannot express.
	if _, err := plan.Parse(data); err != nil {
		findings = append(findings, plan.SchemaError{
			Code:    plan.ErrCodeSchema,
			Message: err.Error(),
		})
		return outputValidationErrors(formatter, findings)
	}

	return outputValidateSuccess(formatter)
}

func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "Plan is valid.")
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, findings []plan.SchemaError) error {
	if formatter.Format == "json" {
		if err := formatter.Error(plan.ErrCodeSchema,
			fmt.Sprintf("plan validation failed with %d error(s)", len(findings)),
			ValidationResult{Valid: false, Errors: findings}); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			fmt.Fprintln(formatter.Writer, f.Error())
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("plan validation failed with %d error(s)", len(findings)))
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	if err := formatter.Error(code, message, nil); err != nil {
		return err
	}
	return NewExitError(ExitCommandError, message)
}
