package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/store"
)

// RootOptions holds global flags and the resolved configuration for all
// commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string

	// Config is resolved by the root command before any subcommand runs.
	Config Config

	// Logger is built from Config.LogFormat and Verbose. Commands fall back
	// to slog.Default() when it is nil.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the docsql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "docsql",
		Short: "docsql - document queries over SQL tables",
		Long: `Store schemaless JSON documents in a MySQL or SQLite table and query them
with document-style filters, projections, sorts and $set updates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !contains(ValidFormats, opts.Format) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
		}

		cfg, err := LoadConfig(flags, opts.ConfigFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		opts.Config = cfg

		logger, err := NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, opts.Verbose)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		opts.Logger = logger
		slog.SetDefault(logger)
		return nil
	}

	// Global flags
	def := DefaultConfig()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (logs every statement)")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default .docsql.yaml)")
	flags.String("driver", def.Driver, "database driver (sqlite3|mysql)")
	flags.String("dsn", def.DSN, "data source name: SQLite file path or MySQL DSN")
	flags.String("table", def.Table, "document table name")
	flags.String("id-strategy", def.IDStrategy, "generated _id format (uuid|xid)")
	flags.String("log-format", def.LogFormat, "log format (text|json)")
	flags.Int("import-concurrency", def.ImportConcurrency, "concurrent inserts during import")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openCollection opens the configured store (creating the table if needed)
// and wraps it in a collection. The caller closes the store.
func (o *RootOptions) openCollection(ctx context.Context) (*collection.Collection, *store.Store, error) {
	ids, err := collection.GeneratorFor(o.Config.IDStrategy)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(ctx, store.Config{
		Driver: o.Config.Driver,
		DSN:    o.Config.DSN,
		Table:  o.Config.Table,
		Logger: o.logger(),
	})
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	coll := collection.New(st,
		collection.WithIDGenerator(ids),
		collection.WithLogger(o.logger()),
	)
	return coll, st, nil
}

// closeStore closes st, logging rather than returning the error.
func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.logger().Error("error closing database", "error", err)
	}
}
