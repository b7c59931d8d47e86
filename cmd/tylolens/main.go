// Command tylolens validates and reports on exported traces and runs the
// trace ingestion server.
//
// Usage:
//
//	tylolens validate <trace.json>
//	tylolens report [--score] <trace.json>
//	tylolens serve [--config tylolens.yaml] [--env-file .env]
//
// validate prints OK and exits 0 for a well-formed trace. Failures are
// written to stderr as "tylo-lens: <message>" with these exit codes:
//
//	1  usage error
//	2  missing or mistyped field
//	3  unreadable file
//	4  invalid JSON
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "tylo-lens: %s\n", err)
		return exitCode(err)
	}
	return exitOK
}
