package main

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/liamcoop/noshow/risk"
)

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output should contain %q:\n%s", w, out)
		}
	}
}

// TestRun_Defaults verifies the default appointment is low risk with no reminder line
func TestRun_Defaults(t *testing.T) {
	code, out, errOut := runCLI()
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d: %s", code, exitOK, errOut)
	}

	assertContains(t, out,
		"LOW RISK: 10% chance of no-show",
		"No major risk factors detected",
		risk.RecommendationFor(risk.BandLow),
	)
	if strings.Contains(out, "With a reminder") {
		t.Errorf("what-if line should only appear without a reminder:\n%s", out)
	}
}

func TestRun_HighRiskText(t *testing.T) {
	code, out, errOut := runCLI("-lead-time", "20", "-reminder=false", "-past-no-shows", "1")
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d: %s", code, exitOK, errOut)
	}

	// 10 + 30 + 25 + 25 + 10
	assertContains(t, out,
		"HIGH RISK: 100% chance of no-show",
		"History of missed appointments",
		"Long lead time without reminder",
		"With a reminder: 80%",
		"Past No-Shows",
	)
}

// TestRun_JSON verifies -json prints a decodable report
func TestRun_JSON(t *testing.T) {
	code, out, errOut := runCLI("-json", "-distance", "far", "-time", "Evening")
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d: %s", code, exitOK, errOut)
	}

	var report risk.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, out)
	}

	if report.Score != 35 || report.Band != risk.BandLow {
		t.Errorf("Score = %d band %s, want 35 Low", report.Score, report.Band)
	}
	if want := []string{"Patient lives far from clinic", "Evening appointment slot"}; !slices.Equal(report.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", report.Reasons, want)
	}
	if len(report.Contributions) != 6 {
		t.Errorf("Contributions = %d bars, want 6", len(report.Contributions))
	}
}

// TestRun_InvalidInput verifies bad values exit with a usage error and print nothing to stdout
func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"lead time too low", []string{"-lead-time", "0"}},
		{"lead time too high", []string{"-lead-time", "31"}},
		{"too many no-shows", []string{"-past-no-shows", "9"}},
		{"unknown distance", []string{"-distance", "Medium"}},
		{"unknown day", []string{"-day", "Holiday"}},
		{"unknown flag", []string{"-patient", "x"}},
		{"bad integer", []string{"-lead-time", "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(tt.args...)
			if code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
			if out != "" {
				t.Errorf("stdout should be empty, got %q", out)
			}
			if errOut == "" {
				t.Error("stderr should explain the error")
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, errOut := runCLI("-h")
	if code != exitOK {
		t.Errorf("exit code = %d, want %d", code, exitOK)
	}
	assertContains(t, errOut, "-lead-time")
}
