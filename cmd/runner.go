package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/repositories"
	"github.com/desertthunder/mtpsync/internal/services"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/tasks"
	"github.com/desertthunder/mtpsync/internal/transcode"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	backend    device.Backend
	encoder    transcode.Encoder
	resolver   services.PlaylistResolver
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Backend    device.Backend            // Defaults to a mount backend over device.mounts
	Encoder    transcode.Encoder         // Defaults to ffmpeg at transcode.ffmpeg
	Resolver   services.PlaylistResolver // Defaults to the resolver selected by playlists.source
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		backend:    opts.Backend,
		encoder:    opts.Encoder,
		resolver:   opts.Resolver,
	}
}

// SetLogger replaces the logger used by every command.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, diffCommand, deviceCommand, transcodeCommand, playlistCommand, historyCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies the log settings.
//
// A missing file is only an error when --config was given explicitly.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
			r.configPath = path
		} else if cmd.IsSet("config") {
			return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		}
	}

	if r.config.Log.File != "" {
		fileLogger, err := shared.NewFileLogger(r.config.Log.File)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(fileLogger)
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// openDevice finds the configured device. The caller must Close the handle.
func (r *Runner) openDevice(ctx context.Context) (*device.Handle, error) {
	if r.config.Device.Name == "" {
		return nil, fmt.Errorf("%w: device.name is required", shared.ErrInvalidConfig)
	}

	backend := r.backend
	if backend == nil {
		backend = device.NewMountBackend(r.config.Device.Mounts...)
	}

	logger := shared.WithLogger(r.logger, "device", r.config.Device.Name)
	h, err := device.Open(ctx, backend, r.config.Device.Name, device.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("device opened", "name", h.Name())
	return h, nil
}

func (r *Runner) playlistResolver() (services.PlaylistResolver, error) {
	if r.resolver != nil {
		return r.resolver, nil
	}
	return services.NewResolver(r.config)
}

// playlists returns the --playlist values, falling back to library.playlists.
func (r *Runner) playlists(cmd *cli.Command) ([]string, error) {
	names := cmd.StringSlice("playlist")
	if len(names) == 0 {
		names = r.config.Library.Playlists
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no playlists given and library.playlists is empty", shared.ErrMissingArgument)
	}
	return names, nil
}

func (r *Runner) desiredSet(ctx context.Context, names []string) (models.DesiredSet, error) {
	resolver, err := r.playlistResolver()
	if err != nil {
		return nil, err
	}

	desired, err := services.BuildDesiredSet(ctx, resolver, names)
	if err != nil {
		return nil, err
	}
	r.logger.Info("resolved playlists", "source", resolver.Name(), "playlists", len(names), "files", desired.Len())
	return desired, nil
}

func (r *Runner) newTranscoder() *transcode.Transcoder {
	encoder := r.encoder
	if encoder == nil {
		encoder = transcode.NewFFmpeg(r.config.Transcode.FFmpeg)
	}
	return transcode.NewTranscoder(transcode.TranscoderOpts{
		CacheDir: r.config.Transcode.CacheDir,
		Encoder:  encoder,
		Logger:   r.logger,
	})
}

func (r *Runner) newEngine(recorder tasks.RunRecorder, dryRun, stopOnError bool) *tasks.DeviceEngine {
	opts := tasks.EngineOpts{
		Transcoder:  r.newTranscoder(),
		Recorder:    recorder,
		LibraryRoot: r.config.Library.Root,
		RootFolder:  r.config.Device.RootFolder,
		Workers:     r.config.WorkerCount(),
		StopOnError: stopOnError,
		DryRun:      dryRun,
		Logger:      r.logger,
	}
	return tasks.NewDeviceEngine(opts)
}

// openHistory opens the run history database, applying pending migrations.
func (r *Runner) openHistory() (*sql.DB, *repositories.RunRepository, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, repositories.NewRunRepository(db), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
