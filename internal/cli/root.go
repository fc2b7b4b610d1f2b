package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flightrecorder/internal/config"
	"flightrecorder/internal/logging"
	"flightrecorder/internal/storage"
	"flightrecorder/internal/version"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg   *config.Config
	log   *logrus.Logger
	store *storage.Store
}

// Execute runs the manager with args, writing command output to out. The
// database is closed even when the command fails.
func Execute(ctx context.Context, args []string, out io.Writer) (err error) {
	a := &app{}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	defer func() { err = errors.Join(err, a.close()) }()
	return root.ExecuteContext(ctx)
}

// newRootCommand builds the manager command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flightrecorder-manager",
		Short:         "Import, export and report on flight sightings.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the SQLite database (overrides database.path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(
		newImportCommand(a),
		newExportCommand(a),
		newReportCommand(a),
		newJobsCommand(a),
		newMigrateCommand(a),
	)
	return root
}

func (a *app) open() error {
	if a.store != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg

	if a.verbose {
		a.log, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
	} else {
		a.log = logging.Discard()
	}

	a.store, err = storage.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
