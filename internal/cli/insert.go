package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/docsql/internal/doc"
)

// maxImportLine caps the size of a single NDJSON document.
const maxImportLine = 16 << 20

// ImportResult reports how many documents an import inserted.
type ImportResult struct {
	Inserted int64 `json:"inserted" yaml:"inserted"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("%d documents inserted", r.Inserted)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <document-json>",
		Short: "Insert one document",
		Long: `Insert one JSON document. A missing or empty _id is generated with the
configured id strategy.

Example:
  docsql insert '{"name":"ann","age":31}'
  docsql insert '{"_id":"ann","tags":["a","b"]}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := parseSpec("document", args[0])
			if err != nil {
				return err
			}

			coll, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			f := rootOpts.formatter(cmd)
			res, err := coll.InsertOne(cmd.Context(), document)
			if err != nil {
				return failOperation(f, "insert failed", err)
			}
			return f.Success(res)
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <ndjson-file>",
		Short: "Insert documents from a newline-delimited JSON file",
		Long: `Insert every document of a newline-delimited JSON file ("-" reads stdin).
Blank lines are skipped. Inserts run concurrently (--import-concurrency);
the first failure stops the import and is reported with its line number.
Documents inserted before the failure are kept.

Example:
  docsql import people.ndjson
  cat people.ndjson | docsql import - --import-concurrency 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open import file", err)
				}
				defer file.Close()
				r = file
			}

			coll, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(rootOpts.Config.ImportConcurrency)

			var inserted atomic.Int64
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 64*1024), maxImportLine)

			lineNo := 0
			for scanner.Scan() && ctx.Err() == nil {
				lineNo++
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				data, n := append([]byte(nil), line...), lineNo

				g.Go(func() error {
					d, err := doc.DecodeOrdered(data)
					if err != nil {
						return fmt.Errorf("line %d: %w", n, err)
					}
					if _, err := coll.InsertOne(ctx, d); err != nil {
						return fmt.Errorf("line %d: %w", n, err)
					}
					inserted.Add(1)
					return nil
				})
			}

			f := rootOpts.formatter(cmd)
			if err := g.Wait(); err != nil {
				return failOperation(f, fmt.Sprintf("import stopped after %d documents", inserted.Load()), err)
			}
			if err := scanner.Err(); err != nil {
				return WrapExitError(ExitCommandError, "failed to read import file", err)
			}

			rootOpts.logger().Info("import complete", "inserted", inserted.Load(), "lines", lineNo)
			return f.Success(ImportResult{Inserted: inserted.Load()})
		},
	}
}
