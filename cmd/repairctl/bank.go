package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/simjay/celor/internal/bank"
	"github.com/simjay/celor/internal/core"
	"github.com/simjay/celor/internal/patch"
)

func handleBank(_ context.Context, configPath string, args []string) error {
	if len(args) == 0 {
		printBankUsage()
		return nil
	}

	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return bankList(rt, args[1:])
	case "show":
		return bankShow(rt, args[1:])
	case "gc":
		return bankGC(rt, args[1:])
	default:
		printBankUsage()
		return fmt.Errorf("unknown bank subcommand %q", args[0])
	}
}

func printBankUsage() {
	fmt.Println(`Usage:
  repairctl bank list
  repairctl bank show <signature-key>
  repairctl bank gc --older-than <duration> [--dry-run]`)
}

func bankList(rt *toolEnv, args []string) error {
	fs := flag.NewFlagSet("bank list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries := rt.bank.List()
	if len(entries) == 0 {
		fmt.Println("Bank is empty.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("- %s\n    successes=%d candidates=%d first_used=%s last_used=%s\n",
			e.Signature.Key(),
			e.SuccessCount, e.CandidatesTried,
			e.FirstUsed.Format(time.RFC3339), e.LastUsed.Format(time.RFC3339))
	}
	return nil
}

func bankShow(rt *toolEnv, args []string) error {
	if len(args) != 1 {
		printBankUsage()
		return core.RequiredError("signature key")
	}
	key := args[0]

	for _, e := range rt.bank.List() {
		if e.Signature.Key() != key {
			continue
		}
		fmt.Printf("Signature: %s\n", key)
		fmt.Printf("Template (%d ops):\n", len(e.Template.Ops))
		for _, op := range e.Template.Ops {
			var parts []string
			for _, a := range op.Args {
				parts = append(parts, fmt.Sprintf("%s=%s", a.Name, describeArg(a.Value)))
			}
			fmt.Printf("  %s(%s)\n", op.Op, strings.Join(parts, ", "))
		}
		fmt.Println("Hole space:")
		for _, name := range e.HoleSpace.Names() {
			domain, _ := e.HoleSpace.Domain(name)
			fmt.Printf("  %s: %v\n", name, domain)
		}
		fmt.Printf("Learned constraints: %d\n", len(e.LearnedConstraints))
		for _, c := range e.LearnedConstraints {
			fmt.Printf("  %v\n", c)
		}
		fmt.Printf("Last successful assignment: %v\n", e.SuccessfulAssignment)
		fmt.Printf("Successes: %d, candidates tried: %d\n", e.SuccessCount, e.CandidatesTried)
		fmt.Printf("First used: %s, last used: %s\n",
			e.FirstUsed.Format(time.RFC3339), e.LastUsed.Format(time.RFC3339))
		return nil
	}
	return core.NewNotFoundError("bank entry", key)
}

func bankGC(rt *toolEnv, args []string) error {
	fs := flag.NewFlagSet("bank gc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	olderThan := fs.Duration("older-than", 0, "Delete entries last used longer than this ago (required)")
	dryRun := fs.Bool("dry-run", false, "Report what would be deleted without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *olderThan <= 0 {
		printBankUsage()
		return core.RequiredError("older-than")
	}

	cutoff := time.Now().Add(-*olderThan)
	var stale []*bank.Entry
	for _, e := range rt.bank.List() {
		if e.LastUsed.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	if len(stale) == 0 {
		fmt.Println("Nothing to collect.")
		return nil
	}
	for _, e := range stale {
		if *dryRun {
			fmt.Printf("Would delete %s (last used %s)\n", e.Signature.Key(), e.LastUsed.Format(time.RFC3339))
			continue
		}
		rt.bank.Delete(e.Signature)
		fmt.Printf("Deleted %s\n", e.Signature.Key())
	}
	if *dryRun {
		return nil
	}
	return rt.bank.Flush()
}

func describeArg(v patch.ArgValue) string {
	switch t := v.(type) {
	case patch.Concrete:
		return fmt.Sprint(t.V)
	case patch.HoleRef:
		return "$hole:" + t.Name
	default:
		return fmt.Sprint(v)
	}
}
