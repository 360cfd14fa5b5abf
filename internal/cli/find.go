package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/queryir"
	"github.com/roach88/docsql/internal/querysql"
)

// readFlags holds the cursor options shared by find and explain.
type readFlags struct {
	projection string
	sort       string
	limit      int64
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.projection, "project", "", `projection document, e.g. '{"name":1}'`)
	cmd.Flags().StringVar(&f.sort, "sort", "", `sort document, e.g. '{"age":-1,"name":1}'`)
	cmd.Flags().Int64Var(&f.limit, "limit", 0, "maximum number of documents (0 = no limit)")
}

// specs parses the filter argument and the cursor flags.
func (f *readFlags) specs(args []string) (filter, projection, sort any, err error) {
	if filter, err = parseSpec("filter", optionalArg(args, 0)); err != nil {
		return nil, nil, nil, err
	}
	if projection, err = parseSpec("projection", f.projection); err != nil {
		return nil, nil, nil, err
	}
	if sort, err = parseSpec("sort", f.sort); err != nil {
		return nil, nil, nil, err
	}
	return filter, projection, sort, nil
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	var flags readFlags

	cmd := &cobra.Command{
		Use:   "find [filter-json]",
		Short: "Query documents",
		Long: `Return the documents matching a filter. Without a filter every document
is returned. Text output prints one JSON document per line.

Supported operators: $in, $lte, $gte, $or, $and. A null value matches
documents where the field is missing or null.

Example:
  docsql find
  docsql find '{"age":{"$gte":30}}' --sort '{"age":-1}' --limit 10
  docsql find '{"$or":[{"name":"ann"},{"name":"bob"}]}' --project '{"name":1}'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, projection, sort, err := flags.specs(args)
			if err != nil {
				return err
			}

			coll, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			f := rootOpts.formatter(cmd)
			docs, err := coll.Find(filter, projection).
				Sort(sort).
				Limit(flags.limit).
				ToArray(cmd.Context())
			if err != nil {
				return failOperation(f, "find failed", err)
			}

			f.VerboseLog("%d documents", len(docs))
			return f.Success(docs)
		},
	}

	flags.register(cmd)
	return cmd
}

// ExplainResult is the statement a find would execute.
type ExplainResult struct {
	SQL    string `json:"sql" yaml:"sql"`
	Params []any  `json:"params" yaml:"params"`
}

func (r ExplainResult) String() string {
	var b strings.Builder
	b.WriteString(r.SQL)
	for i, p := range r.Params {
		fmt.Fprintf(&b, "\n  $%d = %#v", i+1, p)
	}
	return b.String()
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var flags readFlags

	cmd := &cobra.Command{
		Use:   "explain [filter-json]",
		Short: "Show the SQL a find would run",
		Long: `Compile a find into SQL for the configured driver without connecting to
the database. Takes the same arguments as find.

Example:
  docsql explain '{"tags":{"$in":["a","b"]}}' --sort '{"age":1}'
  docsql explain '{"age":{"$lte":40}}' --driver mysql --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, projection, sort, err := flags.specs(args)
			if err != nil {
				return err
			}

			dialect, err := querysql.DialectFor(rootOpts.Config.Driver)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			if err := querysql.ValidateTable(rootOpts.Config.Table); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}

			f := rootOpts.formatter(cmd)
			sel, err := queryir.ParseSelect(filter, projection, sort, flags.limit)
			if err != nil {
				return failOperation(f, "explain failed", err)
			}

			query, params, err := querysql.NewSQLCompiler(dialect, rootOpts.Config.Table).Compile(sel)
			if err != nil {
				return failOperation(f, "explain failed", err)
			}
			if params == nil {
				params = []any{}
			}
			return f.Success(ExplainResult{SQL: query, Params: params})
		},
	}

	flags.register(cmd)
	return cmd
}
