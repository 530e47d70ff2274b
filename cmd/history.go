package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/mtpsync/internal/formatter"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists the most recent runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if d := cmd.String("device"); d != "" {
		criteria["device_name"] = d
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		reports := make([]models.RunReport, len(runs))
		for i, run := range runs {
			reports[i] = runReport(run, nil)
		}
		return r.writeJSON(reports, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}

	data, err := formatter.ExportHistory(runs)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// HistoryShow prints one run, selected by its sequence number (e.g. "42" or "#42"), with its items.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	arg := strings.TrimPrefix(cmd.StringArg("run"), "#")
	if arg == "" {
		return fmt.Errorf("%w: run number is required", shared.ErrMissingArgument)
	}
	seq, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("%w: run number must be an integer, got '%s'", shared.ErrInvalidArgument, arg)
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repo.GetBySequence(seq)
	if err != nil {
		return err
	}
	items, err := repo.Items(run.ID())
	if err != nil {
		return err
	}

	report := runReport(run, items)
	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d  %s", run.Sequence(), run.Status()))
	if msg := run.ErrorMessage(); msg != "" {
		r.writePlain("Error: %s\n", msg)
	}

	data, err := formatter.ExportToText(report)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// runReport rebuilds the report of a recorded run.
func runReport(run *models.SyncRun, items []models.RunItem) models.RunReport {
	rep := models.RunReport{
		RunID:       run.ID(),
		Device:      run.DeviceName(),
		StorageArea: run.StorageArea(),
		RootFolder:  run.RootFolder(),
		DryRun:      run.DryRun(),
		Desired:     run.DesiredCount(),
		Indexed:     run.IndexedCount(),
		Missing:     run.MissingCount(),
		Transferred: run.TransferredCount(),
		Failed:      run.FailedCount(),
		StartedAt:   run.StartedAt(),
		Items:       items,
	}
	for _, it := range items {
		rep.Bytes += it.Bytes
	}
	if c := run.CompletedAt(); c != nil {
		rep.Duration = c.Sub(run.StartedAt())
	}
	if rep.Items == nil {
		rep.Items = []models.RunItem{}
	}
	return rep
}
