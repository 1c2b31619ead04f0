package main

import (
	"fmt"
	"io"
	"os"
)

// Versions stamped onto every verdict this binary produces.
const (
	evaluatorVersion      = "0.3.0"
	schemaContractVersion = "2.0.0"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "govern":
		return runGovern(args[2:], stdout, stderr)
	case "gates":
		return runGates(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "vouch - governance verdicts for pipeline runs")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  vouch govern -stage0 DIR -stage1 DIR -stage2 DIR [-policy FILE] [-out DIR] [-db FILE]")
	_, _ = fmt.Fprintln(w, "      Evaluate governance rules over three stage artifact directories")
	_, _ = fmt.Fprintln(w, "      and write governance.json, snapshot.json and stamp.json.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "  vouch gates -in FILE [-source NAME] [-out DIR]")
	_, _ = fmt.Fprintln(w, "      Derive causal flags over a gate list and write gate_summary.json.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "  vouch verify -snapshot FILE -root DIR")
	_, _ = fmt.Fprintln(w, "      Re-validate every file recorded in an evidence snapshot.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Exit codes: 0 ok, 1 verdict/verification failure, 2 usage or runtime error.")
}
