package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/simjay/celor/internal/artifact"
	"github.com/simjay/celor/internal/controller"
	"github.com/simjay/celor/internal/core"
	"github.com/simjay/celor/internal/watcher"
)

func handleRepair(ctx context.Context, configPath string, args []string) error {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		outDir        = fs.String("out", "", "Directory to write the repaired manifest into (default: overwrite in place)")
		oracleList    = fs.String("oracles", "policy,schema", "Comma separated oracle selection, run in this order")
		scriptPath    = fs.String("script", "", "Path to a JavaScript oracle evaluated after the built-in oracles")
		contextStr    = fs.String("context", "", "Comma separated signature context key=value pairs (merged over manifest labels)")
		maxCandidates = fs.Int("max-candidates", 0, "Override budgets.max_candidates")
		maxIters      = fs.Int("max-iters", 0, "Override budgets.max_iters")
		timeout       = fs.Duration("timeout", 0, "Override budgets.timeout")
		noBank        = fs.Bool("no-bank", false, "Skip bank lookup and never store results")
		noProposer    = fs.Bool("no-proposer", false, "Never call the remote template proposer")
		dryRun        = fs.Bool("dry-run", false, "Run synthesis but write nothing and leave the bank untouched")
		output        = fs.String("output", "text", "Output format: text or json")
	)
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Println(`Usage:
  repairctl repair <manifest.yaml> [--out dir] [--oracles policy,schema,...] [--script file.js]
                   [--max-candidates N] [--max-iters N] [--timeout 30s]
                   [--no-bank] [--no-proposer] [--dry-run] [--context key=value,...]
                   [--output text|json]`)
		return core.RequiredError("manifest path")
	}
	inputPath := fs.Arg(0)

	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	if *maxCandidates > 0 {
		rt.cfg.Budgets.MaxCandidates = *maxCandidates
	}
	if *maxIters > 0 {
		rt.cfg.Budgets.MaxIters = *maxIters
	}
	if *timeout > 0 {
		rt.cfg.Budgets.Timeout = *timeout
		rt.cfg.Budgets.TimeoutS = int(*timeout / time.Second)
	}

	list, err := buildOracles(*oracleList, *scriptPath)
	if err != nil {
		return err
	}
	ctrl := rt.newController(list, *noBank, *noProposer)

	m, err := artifact.Load(inputPath)
	if err != nil {
		return err
	}

	labels := watcher.ContextLabels(m)
	explicit, err := parseKeyValue(*contextStr)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if len(explicit) > 0 {
		if labels == nil {
			labels = map[string]string{}
		}
		for k, v := range explicit {
			labels[k] = v
		}
	}

	var result controller.Result
	if *dryRun {
		result = ctrl.DryRun(ctx, m, labels)
	} else {
		result = ctrl.Repair(ctx, m, labels)
	}

	outputPath := ""
	if result.Status == controller.StatusSuccess && !*dryRun {
		outputPath = inputPath
		if *outDir != "" {
			if err := os.MkdirAll(*outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			outputPath = filepath.Join(*outDir, filepath.Base(inputPath))
		}
		if err := result.Artifact.(*artifact.Manifest).Save(outputPath); err != nil {
			return fmt.Errorf("writing repaired manifest: %w", err)
		}
	}

	if err := printResult(result, *output, outputPath); err != nil {
		return err
	}

	switch result.Status {
	case controller.StatusSuccess, controller.StatusNoViolationsInitially:
		return nil
	default:
		return fmt.Errorf("repair failed: %s", result.Status)
	}
}

// repairReport is the machine-readable projection of a repair outcome for
// --output json.
type repairReport struct {
	Status             string         `json:"status"`
	RequestID          string         `json:"request_id"`
	TemplateSource     string         `json:"template_source"`
	Signature          string         `json:"signature,omitempty"`
	Assignment         map[string]any `json:"assignment,omitempty"`
	ConstraintsLearned int            `json:"constraints_learned"`
	Iterations         int            `json:"iterations"`
	CandidatesTried    int            `json:"candidates_tried"`
	OutputPath         string         `json:"output_path,omitempty"`
	Error              string         `json:"error,omitempty"`
}

func printResult(result controller.Result, format, outputPath string) error {
	report := repairReport{
		Status:             string(result.Status),
		RequestID:          result.RequestID,
		TemplateSource:     string(result.TemplateSource),
		Signature:          result.Signature.Key(),
		Assignment:         result.Assignment,
		ConstraintsLearned: len(result.ConstraintsLearned),
		Iterations:         result.Iterations,
		CandidatesTried:    result.CandidatesTried,
		OutputPath:         outputPath,
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}

	if format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Status: %s\n", report.Status)
	if report.TemplateSource != string(controller.SourceNone) && report.Status != string(controller.StatusNoViolationsInitially) {
		fmt.Printf("Template source: %s\n", report.TemplateSource)
	}
	if len(report.Assignment) > 0 {
		fmt.Printf("Assignment: %v\n", report.Assignment)
	}
	fmt.Printf("Candidates tried: %d, iterations: %d, constraints learned: %d\n",
		report.CandidatesTried, report.Iterations, report.ConstraintsLearned)
	if outputPath != "" {
		fmt.Printf("Wrote %s\n", outputPath)
	}
	if report.Error != "" {
		fmt.Printf("Detail: %s\n", report.Error)
	}
	return nil
}
