package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/simjay/celor/internal/core"
	"github.com/simjay/celor/internal/watcher"
)

func handleWatch(ctx context.Context, configPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		dir        = fs.String("dir", "", "Directory of manifests to watch (default from config)")
		schedule   = fs.String("schedule", "", "Cron schedule (default from config, e.g. \"@every 5m\")")
		oracleList = fs.String("oracles", "policy,schema", "Comma separated oracle selection, run in this order")
		scriptPath = fs.String("script", "", "Path to a JavaScript oracle evaluated after the built-in oracles")
		noBank     = fs.Bool("no-bank", false, "Skip bank lookup and never store results")
		noProposer = fs.Bool("no-proposer", false, "Never call the remote template proposer")
		dryRun     = fs.Bool("dry-run", false, "Report repairs without writing manifests or the bank")
		once       = fs.Bool("once", false, "Run a single sweep and exit instead of scheduling")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	watchDir := rt.cfg.Watch.Dir
	if *dir != "" {
		watchDir = *dir
	}
	if watchDir == "" {
		return core.RequiredError("watch directory (--dir or watch.dir)")
	}
	watchSchedule := rt.cfg.Watch.Schedule
	if *schedule != "" {
		watchSchedule = *schedule
	}

	list, err := buildOracles(*oracleList, *scriptPath)
	if err != nil {
		return err
	}
	ctrl := rt.newController(list, *noBank, *noProposer)

	w := watcher.New(ctrl, watcher.Options{
		Dir:      watchDir,
		Schedule: watchSchedule,
		DryRun:   *dryRun,
		Log:      rt.log,
	})

	if *once {
		res := w.Sweep(ctx)
		if res.Failed > 0 {
			return fmt.Errorf("watch: %d of %d manifests could not be repaired", res.Failed, res.Scanned)
		}
		return nil
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	log := rt.log.WithComponent("watch")
	log.WithField("schedule", watchSchedule).Info("scheduled")
	<-ctx.Done()
	w.Stop()
	log.Info("stopped")
	return nil
}
