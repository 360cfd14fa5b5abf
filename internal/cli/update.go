package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/queryir"
)

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		upsert bool
		many   bool
	)

	cmd := &cobra.Command{
		Use:   "update <filter-json> <update-json>",
		Short: "Apply a $set update to matching documents",
		Long: `Apply {"$set": {...}} to the first matching document, or to every match
with --many. On SQLite, dotted $set paths create missing intermediate
objects. MySQL leaves the document unchanged at a path whose parent is
missing. Documents inserted by an upsert always get the full nested path.

With --upsert, a filter that matches nothing inserts a new document built
from the filter's equality fields and the $set fields. Filters using $in,
$lte, $gte, $or or a nested $and cannot seed a document and fail with
UNSAFE_UPSERT when nothing matches.

Example:
  docsql update '{"name":"ann"}' '{"$set":{"age":32}}'
  docsql update '{"age":{"$lte":18}}' '{"$set":{"minor":true}}' --many
  docsql update '{"_id":"cfg"}' '{"$set":{"limits.max":10}}' --upsert`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseSpec("filter", args[0])
			if err != nil {
				return err
			}
			update, err := parseSpec("update", args[1])
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if upsert {
				warnUnsafeUpsert(rootOpts, filter)
			}

			coll, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			opts := collection.UpdateOptions{Upsert: upsert}
			var res collection.UpdateResult
			if many {
				res, err = coll.UpdateMany(cmd.Context(), filter, update, opts)
			} else {
				res, err = coll.UpdateOne(cmd.Context(), filter, update, opts)
			}
			if err != nil {
				return failOperation(f, "update failed", err)
			}
			return f.Success(res)
		},
	}

	cmd.Flags().BoolVar(&upsert, "upsert", false, "insert a document when nothing matches")
	cmd.Flags().BoolVar(&many, "many", false, "update every matching document")

	return cmd
}

// warnUnsafeUpsert logs the clauses that would stop an upsert from seeding
// a document. Parse errors are left for the update itself to report.
func warnUnsafeUpsert(rootOpts *RootOptions, filter any) {
	pred, err := queryir.ParseFilter(filter)
	if err != nil {
		return
	}
	for _, w := range queryir.Validate(pred).Warnings {
		rootOpts.logger().Warn("upsert filter cannot seed a document", "clause", w)
	}
}
