package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Quantmill-Labs/vouch/pkg/audit"
	"github.com/Quantmill-Labs/vouch/pkg/governance"
	"github.com/Quantmill-Labs/vouch/pkg/policy"
	"github.com/Quantmill-Labs/vouch/pkg/reasons"
	"github.com/Quantmill-Labs/vouch/pkg/snapshot"
	"github.com/Quantmill-Labs/vouch/pkg/stamp"
	"github.com/Quantmill-Labs/vouch/pkg/store"
)

const (
	governanceFile = "governance.json"
	snapshotFile   = "snapshot.json"
	stampFile      = "stamp.json"
)

func runGovern(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("govern", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		stage0Dir  string
		stage1Dir  string
		stage2Dir  string
		policyPath string
		outDir     string
		dbPath     string
	)

	cmd.StringVar(&stage0Dir, "stage0", "", "Seed stage artifact directory (REQUIRED)")
	cmd.StringVar(&stage1Dir, "stage1", "", "Candidate stage artifact directory (REQUIRED)")
	cmd.StringVar(&stage2Dir, "stage2", "", "Confirm stage artifact directory (REQUIRED)")
	cmd.StringVar(&policyPath, "policy", "", "YAML policy profile (default: built-in policy)")
	cmd.StringVar(&outDir, "out", "artifacts/governance", "Output directory for verdict artifacts")
	cmd.StringVar(&dbPath, "db", "", "SQLite ledger to persist the verdict into (optional)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if stage0Dir == "" || stage1Dir == "" || stage2Dir == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -stage0, -stage1 and -stage2 are required")
		return 2
	}

	profile := policy.Default()
	if policyPath != "" {
		var err error
		profile, err = policy.Load(policyPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	engine, err := governance.NewEngine(profile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	report, err := engine.Evaluate(stage0Dir, stage1Dir, stage2Dir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: governance evaluation failed: %v\n", err)
		return 2
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot create %s: %v\n", outDir, err)
		return 2
	}
	if err := writeJSON(filepath.Join(outDir, governanceFile), report); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	// Lock the written report so later verification can prove it unchanged.
	snap, err := snapshot.CreateForJob(report.Metadata.ReportID, outDir, []string{governanceFile})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: snapshot failed: %v\n", err)
		return 2
	}
	if err := writeJSON(filepath.Join(outDir, snapshotFile), snap); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	st, err := stamp.CreateForJob(report.Metadata.ReportID,
		profile.PolicyVersion, reasons.DictionaryVersion, schemaContractVersion, evaluatorVersion)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: stamp failed: %v\n", err)
		return 2
	}
	if err := writeJSON(filepath.Join(outDir, stampFile), st); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if dbPath != "" {
		if err := persistVerdict(dbPath, report, snap, st); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	auditLog := audit.NewLoggerWithWriter(stderr)
	_ = auditLog.Record(context.Background(), audit.EventPolicy, "governance_evaluated",
		"reports/"+report.Metadata.ReportID, map[string]any{
			"policy_version": profile.PolicyVersion,
			"candidates":     len(report.Items),
		})

	_, _ = fmt.Fprintf(stdout, "report %s: %d KEEP, %d FREEZE, %d DROP\n",
		report.Metadata.ReportID,
		report.Metadata.Counts[governance.DecisionKeep],
		report.Metadata.Counts[governance.DecisionFreeze],
		report.Metadata.Counts[governance.DecisionDrop])

	if report.Metadata.Counts[governance.DecisionDrop] > 0 {
		return 1
	}
	return 0
}

func persistVerdict(dbPath string, report *governance.Report, snap *snapshot.Snapshot, st *stamp.Stamp) error {
	ledger, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	ctx := context.Background()
	if err := ledger.SaveReport(ctx, report); err != nil {
		return err
	}
	if err := ledger.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	return ledger.SaveStamp(ctx, st)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
