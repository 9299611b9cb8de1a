package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jonathan/job-pricer/internal/schemas"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON file against an embedded schema",
	Long: `Checks a job request, match verdict or pricing result JSON file against the schema the
engine itself uses. Exits non-zero and lists the failing fields when the file does not validate.`,
	RunE: runValidate,
}

var (
	validateSchema string
	validateFile   string
)

func init() {
	validateCmd.Flags().StringVarP(&validateSchema, "schema", "s", schemas.JobRequest,
		"Schema name: "+strings.Join(schemas.Names(), ", "))
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Path to JSON file (required)")

	if err := validateCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if !slices.Contains(schemas.Names(), validateSchema) {
		return fmt.Errorf("unknown schema %q (known: %s)", validateSchema, strings.Join(schemas.Names(), ", "))
	}

	data, err := os.ReadFile(validateFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", validateFile, err)
	}

	if err := schemas.Validate(validateSchema, string(data)); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), verr.Error())
			return fmt.Errorf("%s does not match %s: %d error(s)", validateFile, validateSchema, len(verr.Errors))
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s\n", validateFile, validateSchema)
	return nil
}
