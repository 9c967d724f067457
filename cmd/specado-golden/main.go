// Command specado-golden runs Specado's golden test corpus: fixture
// translation scenarios checked against their recorded expectations.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/specado/specado/internal/golden"
)

func usage() {
	fmt.Fprintln(os.Stderr, `specado-golden - run the Specado golden test corpus

Usage:
  specado-golden run [corpus-dir] [--category=<name>] [--tag=<name>]
  specado-golden stats [corpus-dir]
  specado-golden version`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("specado-golden dev")
	case "run":
		doRun(args)
	case "stats":
		doStats(args)
	default:
		usage()
		os.Exit(1)
	}
}

func parsePositionalAndFlags(args []string) (corpusDir string, category string, tag string) {
	corpusDir = "corpus"
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--category="):
			category = strings.TrimPrefix(arg, "--category=")
		case strings.HasPrefix(arg, "--tag="):
			tag = strings.TrimPrefix(arg, "--tag=")
		case !strings.HasPrefix(arg, "--"):
			corpusDir = arg
		}
	}
	return corpusDir, category, tag
}

func doRun(args []string) {
	corpusDir, category, tag := parsePositionalAndFlags(args)

	mgr := golden.NewCorpusManager(corpusDir)
	cases, err := mgr.DiscoverTests()
	if err != nil {
		fmt.Fprintf(os.Stderr, "specado-golden: %v\n", err)
		os.Exit(1)
	}

	cases = golden.FilterEnabled(cases)
	if category != "" {
		cases = golden.FilterByCategory(cases, category)
	}
	if tag != "" {
		cases = golden.FilterByTags(cases, []string{tag})
	}

	if len(cases) == 0 {
		fmt.Println("no test cases matched")
		return
	}

	runner := golden.NewRunner()
	results := runner.RunAll(cases)

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	failures := 0
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failures++
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\n", status, r.Name, r.DurationMS)
		if !r.Passed {
			fmt.Fprintf(w, "\t  %s\n", r.Error)
			for _, d := range r.Diff {
				fmt.Fprintf(w, "\t  diff: %s\n", d)
			}
		}
	}
	_ = w.Flush()

	fmt.Printf("\n%d passed, %d failed, %d total\n", len(results)-failures, failures, len(results))
	if failures > 0 {
		os.Exit(1)
	}
}

func doStats(args []string) {
	corpusDir, _, _ := parsePositionalAndFlags(args)

	mgr := golden.NewCorpusManager(corpusDir)
	cases, err := mgr.DiscoverTests()
	if err != nil {
		fmt.Fprintf(os.Stderr, "specado-golden: %v\n", err)
		os.Exit(1)
	}

	stats := mgr.Statistics(cases)
	fmt.Println("=== Corpus Statistics ===")
	fmt.Printf("Total tests: %d\n", stats.TotalTests)
	fmt.Printf("Enabled: %d\n", stats.EnabledTests)
	fmt.Printf("Disabled: %d\n", stats.DisabledTests)

	if len(stats.TestsByCategory) > 0 {
		fmt.Println("\nTests by category:")
		for category, count := range stats.TestsByCategory {
			fmt.Printf("  %s: %d\n", category, count)
		}
	}
	if len(stats.TestsByTag) > 0 {
		fmt.Println("\nTests by tag:")
		for tag, count := range stats.TestsByTag {
			fmt.Printf("  %s: %d\n", tag, count)
		}
	}
}
