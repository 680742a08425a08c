// repairctl is the operational surface over the manifest-repair engine:
// a single-binary CLI exposing repair, bank diagnostics, an ops HTTP
// server, and cron-scheduled watch mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/simjay/celor/internal/bank"
	"github.com/simjay/celor/internal/config"
	"github.com/simjay/celor/internal/controller"
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/oracles"
	"github.com/simjay/celor/internal/proposer"
	"github.com/simjay/celor/pkg/logger"
)

// Build metadata, stamped at link time:
//
//	go build -ldflags "-X main.buildVersion=... -X main.buildCommit=... -X main.buildDate=..."
var (
	buildVersion = "0.1.0"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func buildInfo() string {
	return fmt.Sprintf("repairctl %s (%s, built %s, %s)", buildVersion, buildCommit, buildDate, runtime.Version())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := flag.NewFlagSet("repairctl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	configPath := root.String("config", "", "Path to a TOML config file (default env REPAIRCTL_CONFIG, then ./repairctl.toml)")
	showVersion := root.Bool("version", false, "Print repairctl build information and exit")
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	if *showVersion {
		fmt.Println(buildInfo())
		return nil
	}

	remaining := root.Args()
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	switch remaining[0] {
	case "repair":
		return handleRepair(ctx, *configPath, remaining[1:])
	case "bank":
		return handleBank(ctx, *configPath, remaining[1:])
	case "serve":
		return handleServe(ctx, *configPath, remaining[1:])
	case "watch":
		return handleWatch(ctx, *configPath, remaining[1:])
	case "version":
		fmt.Println(buildInfo())
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printRootUsage()
	return err
}

func printRootUsage() {
	fmt.Println(`Manifest repair CLI (repairctl)

Usage:
  repairctl [global flags] <command> [flags]

Global Flags:
  --config     Path to a TOML config file (env REPAIRCTL_CONFIG, default ./repairctl.toml)
  --version    Print build information and exit

Commands:
  repair       Repair one manifest against the configured oracles
  bank         Inspect and maintain the repair bank (list, show, gc)
  serve        Run the ops HTTP server (/healthz, /metrics)
  watch        Periodically re-verify and repair a manifest directory
  version      Show build information`)
}

// toolEnv bundles everything a subcommand needs once configuration is
// loaded.
type toolEnv struct {
	cfg  *config.Config
	log  *logger.Logger
	bank *bank.Bank
}

func loadRuntime(configPath string) (*toolEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log)

	b, err := bank.New(bank.NewFileStore(cfg.Bank.Path))
	if err != nil {
		// A corrupted bank starts empty; it is reported, never fatal.
		var corrupted *bank.CorruptedError
		if !errors.As(err, &corrupted) {
			return nil, err
		}
		log.WithField("error", err.Error()).Warn("bank: starting empty after corrupted store")
	}

	return &toolEnv{cfg: cfg, log: log, bank: b}, nil
}

// newController assembles the controller a subcommand drives. noBank and
// noProposer are the CLI's spec-mandated toggles; the oracle list runs in
// the fixed order given.
func (rt *toolEnv) newController(oracleList []oracle.Oracle, noBank, noProposer bool) *controller.Controller {
	client := proposer.NewHTTPClient(rt.cfg.Proposer.Endpoint, rt.cfg.Proposer.Timeout)
	client.UserAgent = "repairctl/" + buildVersion
	opts := controller.Options{
		Proposer:         client,
		DefaultTemplate:  defaultTemplate,
		Budgets:          rt.cfg.Budgets.ToSynthBudgets(),
		Log:              rt.log,
		ProposerDisabled: noProposer,
	}
	if !noBank {
		opts.Bank = rt.bank
	}
	return controller.New(oracle.NewVerifier(oracleList...), opts)
}

// buildOracles resolves a comma-separated oracle selection into concrete
// oracle instances, preserving the caller's order (the verifier runs them
// in exactly this order on every iteration). An optional script file adds
// a ScriptOracle at the end of the list.
func buildOracles(selection, scriptPath string) ([]oracle.Oracle, error) {
	var list []oracle.Oracle
	for _, name := range splitCommaList(selection) {
		switch name {
		case "policy":
			list = append(list, oracles.NewDefaultPolicyOracle())
		case "schema":
			list = append(list, oracles.NewSchemaOracle())
		case "resource":
			list = append(list, oracles.NewDefaultResourceOracle())
		case "security":
			list = append(list, oracles.NewSecurityOracle())
		default:
			return nil, fmt.Errorf("unknown oracle %q (known: policy, schema, resource, security)", name)
		}
	}
	if scriptPath != "" {
		code, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("reading oracle script: %w", err)
		}
		list = append(list, oracles.NewScriptOracle(scriptName(scriptPath), string(code)))
	}
	if len(list) == 0 {
		return nil, errors.New("no oracles selected")
	}
	return list, nil
}
