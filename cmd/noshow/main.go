package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/liamcoop/noshow/risk"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("noshow", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		leadTime    = fs.Int("lead-time", 10, "Days between booking and appointment (1-30)")
		pastNoShows = fs.Int("past-no-shows", 0, "Number of past missed appointments (0-5)")
		reminder    = fs.Bool("reminder", true, "Whether a reminder was sent")
		distance    = fs.String("distance", string(risk.Near), "Patient distance from clinic: Near or Far")
		timeOfDay   = fs.String("time", string(risk.Morning), "Appointment time: Morning or Evening")
		dayType     = fs.String("day", string(risk.Weekday), "Day of appointment: Weekday or Weekend")
		asJSON      = fs.Bool("json", false, "Print the report as JSON")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	features, err := parseFeatures(*leadTime, *pastNoShows, *reminder, *distance, *timeOfDay, *dayType)
	if err != nil {
		fmt.Fprintf(stderr, "invalid input: %v\n", err)
		return exitUsage
	}

	scorer, err := risk.NewStandardScorer()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load rule table: %v\n", err)
		return exitFailure
	}

	report, err := scorer.Assess(features)
	if errors.Is(err, risk.ErrInvalidInput) {
		fmt.Fprintf(stderr, "invalid input: %v\n", err)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "assessment failed: %v\n", err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "failed to encode report: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	printReport(stdout, report, !features.ReminderSent)
	return exitOK
}

func parseFeatures(leadTime, pastNoShows int, reminder bool, distance, timeOfDay, dayType string) (risk.AppointmentFeatures, error) {
	d, errD := risk.ParseDistance(distance)
	t, errT := risk.ParseTimeOfDay(timeOfDay)
	day, errDay := risk.ParseDayType(dayType)
	if err := errors.Join(errD, errT, errDay); err != nil {
		return risk.AppointmentFeatures{}, err
	}

	f := risk.AppointmentFeatures{
		LeadTimeDays: leadTime,
		PastNoShows:  pastNoShows,
		ReminderSent: reminder,
		Distance:     d,
		TimeOfDay:    t,
		DayType:      day,
	}
	return f, f.Validate()
}

// printReport writes the human-readable report. The reminder projection is
// only shown when no reminder was sent.
func printReport(w io.Writer, r risk.Report, showWhatIf bool) {
	fmt.Fprintf(w, "%s RISK: %d%% chance of no-show\n\n", strings.ToUpper(string(r.Band)), r.Score)

	fmt.Fprintln(w, "Why this risk?")
	if len(r.Reasons) == 0 {
		fmt.Fprintln(w, "  - No major risk factors detected")
	}
	for _, reason := range r.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}

	fmt.Fprintln(w, "\nRisk contribution:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range r.Contributions {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", c.Factor, c.Impact, strings.Repeat("#", c.Impact/5))
	}
	tw.Flush()

	if showWhatIf {
		fmt.Fprintf(w, "\nWith a reminder: %d%%\n", r.WhatIfReminderScore)
	}
	fmt.Fprintf(w, "\nRecommendation: %s\n", r.Recommendation)
}
