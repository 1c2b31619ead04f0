package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Quantmill-Labs/vouch/pkg/snapshot"
)

func runVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		snapshotPath string
		root         string
	)

	cmd.StringVar(&snapshotPath, "snapshot", "", "Evidence snapshot JSON file (REQUIRED)")
	cmd.StringVar(&root, "root", "", "Evidence root directory to validate against (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if snapshotPath == "" || root == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -snapshot and -root are required")
		return 2
	}

	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	violations := snapshot.ValidateAll(snap, root)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(stdout, "OK: %d files verified against %s\n", len(snap.Files()), root)
		return 0
	}

	for _, v := range violations {
		_, _ = fmt.Fprintf(stdout, "FAIL %s: %s\n", v.Relpath, v.Reason)
	}
	_, _ = fmt.Fprintf(stderr, "%d of %d files failed verification\n", len(violations), len(snap.Files()))
	return 1
}
