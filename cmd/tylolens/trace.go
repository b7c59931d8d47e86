package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/tylolens/ethics"
	"github.com/jonwraymond/tylolens/lens"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <trace.json>",
		Short: "Validate an exported trace file",
		Args:  exactlyOneFile("validate <trace.json>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readTrace(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newReportCommand() *cobra.Command {
	var score bool
	cmd := &cobra.Command{
		Use:   "report <trace.json>",
		Short: "Render a markdown compliance report for a trace file",
		Args:  exactlyOneFile("report <trace.json>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readTrace(args[0])
			if err != nil {
				return err
			}
			var t lens.Trace
			if err := json.Unmarshal(data, &t); err != nil {
				return fail(exitBadJSON, "Invalid JSON", err)
			}
			if score && (t.Analysis == nil || t.Analysis.Transparency == nil) {
				ethics.NewScorer(ethics.DefaultWeights()).Annotate(&t)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ethics.ComplianceReport(&t))
			return nil
		},
	}
	cmd.Flags().BoolVar(&score, "score", false, "Compute the transparency score when the trace has none")
	return cmd
}

// readTrace loads path and checks the fields every trace must carry.
func readTrace(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(exitUnreadable, "Cannot read file: "+path, err)
	}
	if err := lens.ValidateJSON(data); err != nil {
		if errors.Is(err, lens.ErrInvalidJSON) {
			return nil, fail(exitBadJSON, "Invalid JSON", err)
		}
		return nil, fail(exitInvalid, err.Error(), err)
	}
	return data, nil
}
