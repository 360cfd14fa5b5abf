package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/collection"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var many bool

	cmd := &cobra.Command{
		Use:   "delete <filter-json>",
		Short: "Delete matching documents",
		Long: `Delete the first document matching a filter, or every match with --many.
An empty filter '{}' matches every document.

Example:
  docsql delete '{"_id":"ann"}'
  docsql delete '{"age":{"$gte":65}}' --many`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseSpec("filter", args[0])
			if err != nil {
				return err
			}

			coll, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			f := rootOpts.formatter(cmd)
			var res collection.DeleteResult
			if many {
				res, err = coll.DeleteMany(cmd.Context(), filter)
			} else {
				res, err = coll.DeleteOne(cmd.Context(), filter)
			}
			if err != nil {
				return failOperation(f, "delete failed", err)
			}
			return f.Success(res)
		},
	}

	cmd.Flags().BoolVar(&many, "many", false, "delete every matching document")

	return cmd
}
