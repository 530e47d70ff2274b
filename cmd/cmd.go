// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func playlistFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "playlist",
		Aliases: []string{"p"},
		Usage:   "Playlist to sync (repeatable, defaults to library.playlists)",
	}
}

// syncCommand transfers missing playlist items to the device
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Transcode and copy playlist items missing on the device",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Report what would be transferred without writing to the device",
			},
			&cli.BoolFlag{
				Name:  "stop-on-error",
				Usage: "Stop the run at the first item that fails",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running and sync again when playlists change",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run report as JSON",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Also write the run report to a file (.json for JSON, text otherwise)",
			},
		},
		Action: r.Sync,
	}
}

// diffCommand lists what a sync would transfer
func diffCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Show playlist items missing on the device",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the report as JSON",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Also write the report to a file",
			},
		},
		Action: r.Diff,
	}
}

// deviceCommand inspects the connected device
func deviceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "device",
		Usage: "Inspect the configured device",
		Commands: []*cli.Command{
			{
				Name:  "info",
				Usage: "Show storage areas and free space",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DeviceInfo,
			},
			{
				Name:  "index",
				Usage: "Print the content tree under the root folder",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the flattened content identifiers as JSON",
					},
				},
				Action: r.DeviceIndex,
			},
		},
	}
}

// transcodeCommand encodes a single file into the cache
func transcodeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transcode",
		Usage: "Transcode one source file into the cache and print the artifact path",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "file",
			},
		},
		Action: r.Transcode,
	}
}

// playlistCommand resolves playlists without touching the device
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "List the source files of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "export",
				Usage: "Write a playlist to an M3U file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: system temp directory)",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// historyCommand reads recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded sync runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Only show runs against this device",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show one run and its items",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "run",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// setupCommand handles first-run setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive syncing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Review missing items and sync interactively",
		Flags: []cli.Flag{
			playlistFlag(),
		},
		Action: r.TUI,
	}
}
