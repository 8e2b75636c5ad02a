package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/auth"
	"github.com/desertthunder/songbook/internal/catalog"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/metrics"
	"github.com/desertthunder/songbook/internal/repositories"
	"github.com/desertthunder/songbook/internal/search"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
	"github.com/desertthunder/songbook/internal/store/dynamo"
	"github.com/desertthunder/songbook/internal/store/s3"
	"github.com/desertthunder/songbook/internal/store/surreal"
	"github.com/desertthunder/songbook/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Backends are opened lazily on first use and closed by [Runner.Close].
type Runner struct {
	config     *shared.Config
	configPath string
	configured bool
	logger     *log.Logger
	output     io.Writer
	metrics    *metrics.Observer

	store store.Store
	index store.CategoryStore
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	// Store replaces the configured database.
	Store store.Store
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configured := opts.Config != nil
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
		configured: configured,
		logger:     opts.Logger,
		output:     opts.Output,
		metrics:    metrics.NewObserver(),
		store:      opts.Store,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "songbook",
		Usage:   "Song catalog with a live category index",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override logging.level (debug, info, warn, error)",
			},
		},
		Before:   r.loadConfig,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, songsCommand, indexCommand, adminCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads --config. A missing default config.toml keeps the built-in
// defaults; a missing file named explicitly is an error, except for setup config
// which is about to write it.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	explicit := cmd.IsSet("config") && !writesConfig(cmd.Args().Slice())
	if explicit || !r.configured {
		path := cmd.String("config")
		config, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			r.config, r.configPath = config, path
		case errors.Is(err, shared.ErrMissingConfig) && !explicit:
			r.logger.Debug("config file not found, using defaults", "path", path)
		default:
			return ctx, err
		}
	}

	shared.SetLogLevelString(r.logger, r.config.Logging.Level)
	if level := cmd.String("log-level"); level != "" {
		shared.SetLogLevelString(r.logger, level)
	}
	return ctx, nil
}

func writesConfig(args []string) bool {
	return len(args) >= 2 && args[0] == "setup" && args[1] == "config"
}

// Close releases every opened backend.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// openStore returns the song store selected by database.driver, migrated.
func (r *Runner) openStore(ctx context.Context) (store.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	var (
		st  store.Store
		err error
	)
	switch r.config.Database.Driver {
	case "surrealdb":
		st, err = surreal.Open(ctx, surreal.OptionsFromConfig(r.config), r.logger)
	default:
		var sq *repositories.Store
		if sq, err = repositories.NewStore(r.config.Database.Path); err == nil {
			shared.ConfigureDatabase(sq.DB(), r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
			st = sq
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrDatabaseConnection, err)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	r.store = st
	return st, nil
}

// openIndex returns the categories_metadata backend selected by index.backend.
func (r *Runner) openIndex(ctx context.Context, st store.Store) (store.CategoryStore, error) {
	if r.index != nil {
		return r.index, nil
	}

	switch r.config.Index.Backend {
	case "dynamodb":
		client, err := dynamo.NewClient(ctx, r.config.Index.Region, r.config.Index.Endpoint)
		if err != nil {
			return nil, err
		}
		idx := dynamo.New(client, r.config.Index.Table)
		if err := idx.EnsureTable(ctx); err != nil {
			return nil, err
		}
		r.logger.Debug("using dynamodb category index", "table", r.config.Index.Table)
		r.index = idx
	default:
		r.index = st
	}
	return r.index, nil
}

func (r *Runner) synchronizer(idx store.CategoryStore, st store.Store) *catalog.Synchronizer {
	return catalog.NewSynchronizer(idx, st, r.logger,
		catalog.WithConcurrency(r.config.Sync.Concurrency),
		catalog.WithRecorder(r.metrics),
	)
}

func (r *Runner) watcher(st store.Store, handlers ...tasks.ChangeHandler) *tasks.Watcher {
	return tasks.NewWatcher(st, handlers, r.logger,
		tasks.WithBatchSize(r.config.Sync.BatchSize),
		tasks.WithMaxAttempts(r.config.Sync.MaxAttempts),
		tasks.WithPollInterval(r.config.Sync.PollInterval.Duration),
		tasks.WithChangeRecorder(r.metrics),
	)
}

// openSearch builds the full-text index and fills it from st.
func (r *Runner) openSearch(ctx context.Context, st store.Store) (*search.Index, error) {
	idx, err := search.Open(r.config.Search.Path, r.logger)
	if err != nil {
		return nil, err
	}
	songs, err := st.ListSongs(ctx, store.SongFilter{})
	if err != nil {
		idx.Close()
		return nil, err
	}
	if err := idx.Rebuild(ctx, songs); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func (r *Runner) authService(st store.Store) (*auth.Service, error) {
	return auth.New(r.config.Auth, st, r.logger)
}

// sink returns a directory sink when dir is set and the S3 sink otherwise.
func (r *Runner) sink(ctx context.Context, dir string) (tasks.Sink, error) {
	if dir != "" {
		return tasks.DirSink{Dir: dir}, nil
	}
	if r.config.Export.Bucket == "" {
		return nil, fmt.Errorf("%w: --dir or export.bucket is required", shared.ErrMissingArgument)
	}
	client, err := s3.NewClient(ctx, r.config.Export.Region, r.config.Export.Endpoint)
	if err != nil {
		return nil, err
	}
	return s3.NewSink(client, r.config.Export.Bucket, r.config.Export.Prefix), nil
}

func (r *Runner) listingOptions() listing.Options {
	return listing.Options{TitleLocale: listing.ParseLocale(r.config.Listing.TitleLocale)}
}

// follow logs progress updates until prog is closed, then closes done.
func (r *Runner) follow(prog <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for u := range prog {
		r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
	}
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// SetLogger replaces the logger for subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}
