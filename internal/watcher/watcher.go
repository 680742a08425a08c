// Package watcher implements watch mode: a cron-scheduled sweep over a
// manifest directory that feeds each non-compliant manifest through the
// controller, one at a time. The engine itself forks no work; the
// watcher simply invokes the controller once per manifest per tick,
// sequentially, and writes repaired manifests back in place.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/simjay/celor/internal/artifact"
	"github.com/simjay/celor/internal/controller"
	"github.com/simjay/celor/pkg/logger"
	"github.com/simjay/celor/pkg/metrics"
)

// Options configures a Watcher.
type Options struct {
	// Dir is the directory scanned for *.yaml / *.yml manifests.
	Dir string
	// Schedule is a cron spec accepted by robfig/cron (including
	// descriptors like "@every 5m").
	Schedule string
	// DryRun leaves manifests and the bank untouched, reporting only.
	DryRun bool
	Log    *logger.Logger
}

// Watcher periodically re-verifies and repairs the manifests under a
// directory.
type Watcher struct {
	ctrl *controller.Controller
	opts Options
	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// New builds a Watcher over ctrl.
func New(ctrl *controller.Controller, opts Options) *Watcher {
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 5m"
	}
	return &Watcher{ctrl: ctrl, opts: opts}
}

// Start schedules the sweep and runs one immediately, so a fresh watcher
// does not sit idle until the first tick. Returns after scheduling; the
// cron runner owns its own goroutine until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(w.opts.Schedule, func() { w.Sweep(ctx) }); err != nil {
		return err
	}
	w.cron = c
	w.running = true
	c.Start()
	go w.Sweep(ctx)
	return nil
}

// Stop halts the schedule, waiting for an in-flight scheduled sweep to
// finish; the immediate sweep launched by Start is not waited for.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.running = false
	w.cron = nil
	w.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// SweepResult summarises one pass over the watch directory.
type SweepResult struct {
	Scanned  int
	Repaired int
	Clean    int
	Failed   int
}

// Sweep runs one pass over the watch directory: every manifest is fed
// through the controller in file-name order; repaired manifests are
// written back in place unless DryRun is set.
func (w *Watcher) Sweep(ctx context.Context) SweepResult {
	log := w.opts.Log.WithComponent("watch")
	var res SweepResult

	paths, err := manifestPaths(w.opts.Dir)
	if err != nil {
		log.WithField("error", err.Error()).Error("scanning directory")
		metrics.ObserveWatcherRun("scan_error")
		return res
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		res.Scanned++
		w.repairOne(ctx, log.WithField("manifest", path), path, &res)
	}

	switch {
	case res.Failed > 0:
		metrics.ObserveWatcherRun("partial")
	case res.Repaired > 0:
		metrics.ObserveWatcherRun("repaired")
	default:
		metrics.ObserveWatcherRun("clean")
	}
	log.WithFields(logrus.Fields{
		"scanned": res.Scanned, "repaired": res.Repaired, "clean": res.Clean, "failed": res.Failed,
	}).Info("sweep complete")
	return res
}

func (w *Watcher) repairOne(ctx context.Context, log *logrus.Entry, path string, res *SweepResult) {
	m, err := artifact.Load(path)
	if err != nil {
		log.WithField("error", err.Error()).Warn("skipping unreadable manifest")
		res.Failed++
		return
	}

	var result controller.Result
	if w.opts.DryRun {
		result = w.ctrl.DryRun(ctx, m, ContextLabels(m))
	} else {
		result = w.ctrl.Repair(ctx, m, ContextLabels(m))
	}

	switch result.Status {
	case controller.StatusNoViolationsInitially:
		res.Clean++
	case controller.StatusSuccess:
		if w.opts.DryRun {
			log.Info("repair found (dry run, not written)")
			res.Repaired++
			return
		}
		repaired := result.Artifact.(*artifact.Manifest)
		if err := repaired.Save(path); err != nil {
			log.WithField("error", err.Error()).Error("writing repaired manifest")
			res.Failed++
			return
		}
		log.WithField("candidates", result.CandidatesTried).Info("manifest repaired")
		res.Repaired++
	default:
		log.WithField("status", string(result.Status)).Warn("repair failed")
		res.Failed++
	}
}

func manifestPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ContextLabels derives signature context from well-known manifest labels
// (app name, environment), so two manifests for the same app/env reuse a
// bank entry even when their violation evidence arrives in a different
// order.
func ContextLabels(m *artifact.Manifest) map[string]string {
	body, err := m.JSON()
	if err != nil {
		return nil
	}
	labels := map[string]string{}
	for key, path := range map[string]string{
		"app": "metadata.labels.app",
		"env": "metadata.labels.env",
	} {
		if v := gjsonGet(body, path); v != "" {
			labels[key] = v
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}

func gjsonGet(body []byte, path string) string {
	r := gjson.GetBytes(body, path)
	if !r.Exists() {
		return ""
	}
	return r.String()
}
