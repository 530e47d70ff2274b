package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/desertthunder/mtpsync/internal/formatter"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/tasks"
	"github.com/desertthunder/mtpsync/internal/watcher"
	"github.com/urfave/cli/v3"
)

// Sync resolves the playlists, then transcodes and uploads whatever the device is missing.
//
// With --watch the command keeps running and syncs again whenever a playlist source changes.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	names, err := r.playlists(cmd)
	if err != nil {
		return err
	}

	once := func(ctx context.Context) error {
		return r.syncOnce(ctx, cmd, names, cmd.Bool("dry-run"))
	}

	if err := once(ctx); err != nil && !cmd.Bool("watch") {
		return err
	} else if err != nil {
		r.logger.Error("sync failed", "error", err)
	}

	if !cmd.Bool("watch") {
		return nil
	}
	return r.watch(ctx, once)
}

// Diff reports which playlist items are missing on the device without transferring anything.
func (r *Runner) Diff(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	names, err := r.playlists(cmd)
	if err != nil {
		return err
	}
	return r.syncOnce(ctx, cmd, names, true)
}

func (r *Runner) syncOnce(ctx context.Context, cmd *cli.Command, names []string, dryRun bool) error {
	desired, err := r.desiredSet(ctx, names)
	if err != nil {
		return err
	}

	h, err := r.openDevice(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	var recorder tasks.RunRecorder
	if !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("run history unavailable", "error", err)
		} else {
			defer db.Close()
			recorder = repo
		}
	}

	engine := r.newEngine(recorder, dryRun, cmd.Bool("stop-on-error"))

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go r.printProgress(&wg, progress, cmd.Bool("json"))

	result, runErr := engine.Run(ctx, progress, h, desired)
	close(progress)
	wg.Wait()

	if result != nil {
		if err := r.writeReport(cmd, result.Report()); err != nil {
			return err
		}
	}
	return runErr
}

func (r *Runner) writeReport(cmd *cli.Command, report models.RunReport) error {
	if path := cmd.String("report"); path != "" {
		if err := formatter.WriteReport(report, path); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	data, err := formatter.ExportToText(report)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	r.writePlainHeader("Sync Report")
	return r.writePlain("%s", data)
}

// printProgress writes progress messages until updates is closed.
//
// Byte-level transfer updates are only shown on a terminal, where they overwrite the current line.
func (r *Runner) printProgress(wg *sync.WaitGroup, updates <-chan tasks.ProgressUpdate, quiet bool) {
	defer wg.Done()

	live := !quiet && isTerminal(r.output)
	pending := false
	for update := range updates {
		if quiet {
			continue
		}

		if _, ok := update.Data.(tasks.TransferProgress); ok {
			if live {
				r.writePlain("\r\033[K%s", update.Message)
				pending = true
			}
			continue
		}
		if pending {
			r.writePlain("\r\033[K")
			pending = false
		}

		switch update.Phase {
		case tasks.Connect, tasks.Index:
			r.writePlain("📱 %s\n", update.Message)
		case tasks.Compare:
			r.writePlain("🔍 %s\n", update.Message)
		case tasks.Transcode:
			r.writePlain("   %s\n", update.Message)
		case tasks.Transfer:
			r.writePlain("📤 %s\n", update.Message)
		case tasks.Complete:
			r.writePlain("✓ %s\n", update.Message)
		}
	}
	if pending {
		r.writePlain("\n")
	}
}

// watch re-runs fn after every change to the playlist sources until ctx is cancelled.
func (r *Runner) watch(ctx context.Context, fn func(context.Context) error) error {
	paths, extensions, err := r.watchTargets()
	if err != nil {
		return err
	}

	w, err := watcher.NewWatcher(watcher.WatcherOpts{
		Paths:      paths,
		Extensions: extensions,
		Debounce:   r.config.Watch.Debounce,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	r.logger.Info("watching playlists for changes", "paths", paths)
	return w.Watch(ctx, func(ctx context.Context, changed []string) error {
		r.logger.Debug("playlist sources changed", "paths", changed)
		return fn(ctx)
	})
}

// watchTargets returns the paths that hold the configured playlists.
func (r *Runner) watchTargets() ([]string, []string, error) {
	switch r.config.Playlists.Source {
	case "", "m3u":
		if r.config.Playlists.M3UDir == "" {
			return nil, nil, fmt.Errorf("%w: playlists.m3u_dir is not set", shared.ErrInvalidConfig)
		}
		return []string{r.config.Playlists.M3UDir}, []string{".m3u", ".m3u8"}, nil
	case "swinsian":
		if r.config.Playlists.SwinsianDB == "" {
			return nil, nil, fmt.Errorf("%w: playlists.swinsian_db is not set", shared.ErrInvalidConfig)
		}
		return []string{filepath.Clean(r.config.Playlists.SwinsianDB)}, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown playlist source '%s'", shared.ErrInvalidConfig, r.config.Playlists.Source)
	}
}
