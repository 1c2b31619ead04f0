package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Quantmill-Labs/vouch/pkg/gategraph"
	"github.com/Quantmill-Labs/vouch/pkg/governance"
)

func writeFixture(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func stageFixture(t *testing.T, runID string, topk []any) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "manifest.json", map[string]any{"run_id": runID})
	writeFixture(t, dir, "winners.json", map[string]any{"topk": topk})
	return dir
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"vouch", "bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Unknown command") {
		t.Errorf("stderr missing diagnostic: %s", stderr.String())
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"vouch", "help"}, &stdout, &stderr); code != 0 {
		t.Errorf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "govern") {
		t.Error("usage should list subcommands")
	}
}

func TestGovern_EndToEnd(t *testing.T) {
	stage0 := stageFixture(t, "r0", []any{})
	stage1 := stageFixture(t, "r1", []any{
		map[string]any{"param_id": 1, "finalscore": 100.0},
	})
	stage2 := stageFixture(t, "r2", []any{
		map[string]any{"param_id": 1, "finalscore": 98.0},
	})
	outDir := filepath.Join(t.TempDir(), "out")
	dbPath := filepath.Join(t.TempDir(), "verdicts.db")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"vouch", "govern",
		"-stage0", stage0, "-stage1", stage1, "-stage2", stage2,
		"-out", outDir, "-db", dbPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, want 0; stderr: %s", code, stderr.String())
	}

	for _, name := range []string{governanceFile, snapshotFile, stampFile} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, governanceFile))
	if err != nil {
		t.Fatal(err)
	}
	var report governance.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("governance.json malformed: %v", err)
	}
	if len(report.Items) != 1 || report.Items[0].Decision != governance.DecisionKeep {
		t.Errorf("unexpected verdict: %+v", report.Items)
	}

	if !strings.Contains(stdout.String(), "1 KEEP") {
		t.Errorf("summary line missing: %s", stdout.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("ledger not created: %v", err)
	}
}

func TestGovern_DropExitsOne(t *testing.T) {
	stage0 := stageFixture(t, "r0", []any{})
	stage1 := stageFixture(t, "r1", []any{
		map[string]any{"param_id": 1, "finalscore": 100.0},
	})
	stage2 := stageFixture(t, "r2", []any{})
	outDir := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"vouch", "govern",
		"-stage0", stage0, "-stage1", stage1, "-stage2", stage2,
		"-out", outDir}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit = %d, want 1 when candidates are dropped; stderr: %s", code, stderr.String())
	}
}

func TestGovern_MissingFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"vouch", "govern"}, &stdout, &stderr); code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
}

func TestGates_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	gates := []gategraph.Item{
		{GateID: "g_root", Status: gategraph.StatusReject},
		{GateID: "g_child", Status: gategraph.StatusReject, DependsOn: []string{"g_root"}},
	}
	writeFixture(t, dir, "gates.json", gates)
	outDir := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"vouch", "gates",
		"-in", filepath.Join(dir, "gates.json"), "-source", "conformance",
		"-out", outDir}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit = %d, want 1 for REJECT overall; stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(outDir, gateSummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	var summary gategraph.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("gate_summary.json malformed: %v", err)
	}
	if summary.OverallStatus != gategraph.StatusReject {
		t.Errorf("overall = %s, want REJECT", summary.OverallStatus)
	}
	for _, g := range summary.Gates {
		switch g.GateID {
		case "g_root":
			if !g.IsPrimaryFail {
				t.Error("g_root should be the primary fail")
			}
		case "g_child":
			if !g.IsPropagatedFail {
				t.Error("g_child should be a propagated fail")
			}
		}
	}
}

func TestVerify_RoundTripAndTamper(t *testing.T) {
	stage0 := stageFixture(t, "r0", []any{})
	stage1 := stageFixture(t, "r1", []any{
		map[string]any{"param_id": 1, "finalscore": 100.0},
	})
	stage2 := stageFixture(t, "r2", []any{
		map[string]any{"param_id": 1, "finalscore": 98.0},
	})
	outDir := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	if code := Run([]string{"vouch", "govern",
		"-stage0", stage0, "-stage1", stage1, "-stage2", stage2,
		"-out", outDir}, &stdout, &stderr); code != 0 {
		t.Fatalf("govern failed: %s", stderr.String())
	}

	snapPath := filepath.Join(outDir, snapshotFile)

	stdout.Reset()
	stderr.Reset()
	if code := Run([]string{"vouch", "verify",
		"-snapshot", snapPath, "-root", outDir}, &stdout, &stderr); code != 0 {
		t.Fatalf("verify of untouched evidence failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "OK") {
		t.Errorf("expected OK line, got: %s", stdout.String())
	}

	// Tamper with the governed report and verify again.
	if err := os.WriteFile(filepath.Join(outDir, governanceFile), []byte(`{"tampered":true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout.Reset()
	stderr.Reset()
	if code := Run([]string{"vouch", "verify",
		"-snapshot", snapPath, "-root", outDir}, &stdout, &stderr); code != 1 {
		t.Fatalf("verify of tampered evidence should exit 1; stdout: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "SHA256 mismatch") {
		t.Errorf("expected hash mismatch reason, got: %s", stdout.String())
	}
}
