package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tylolens",
		Short: "Inspect LLM traces and run the trace ingestion server",
		Long: `tylolens works with traces exported by the tylolens SDK.

Run 'tylolens validate <trace.json>' to check a trace file, 'tylolens report'
to render a compliance report and 'tylolens serve' to collect traces over
HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newServeCommand())
	return cmd
}

// exactlyOneFile rejects anything but a single file argument with use as
// the message.
func exactlyOneFile(use string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 || args[0] == "" {
			return fail(exitUsage, "Usage: tylo-lens "+use, nil)
		}
		return nil
	}
}
