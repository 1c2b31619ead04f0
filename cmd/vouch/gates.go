package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Quantmill-Labs/vouch/pkg/gategraph"
)

const gateSummaryFile = "gate_summary.json"

func runGates(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("gates", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		inPath    string
		source    string
		evaluator string
		outDir    string
	)

	cmd.StringVar(&inPath, "in", "", "Gate list JSON file (REQUIRED)")
	cmd.StringVar(&source, "source", "", "Label for where the gate list came from")
	cmd.StringVar(&evaluator, "evaluator", "vouch", "Evaluator label recorded on the summary")
	cmd.StringVar(&outDir, "out", "", "Directory to write gate_summary.json into (default: stdout only)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if inPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -in is required")
		return 2
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var gates []gategraph.Item
	if err := json.Unmarshal(data, &gates); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse %s: %v\n", inPath, err)
		return 2
	}

	summary := gategraph.NewSummary(gates, source, evaluator, true)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot create %s: %v\n", outDir, err)
			return 2
		}
		if err := writeJSON(filepath.Join(outDir, gateSummaryFile), summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(out))

	if summary.OverallStatus == gategraph.StatusReject {
		return 1
	}
	return 0
}
