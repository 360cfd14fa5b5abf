package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult reports the table that init prepared.
type InitResult struct {
	Driver string `json:"driver" yaml:"driver"`
	Table  string `json:"table" yaml:"table"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("table %s ready (%s)", r.Table, r.Driver)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the document table",
		Long: `Connect to the configured database and create the document table if it
does not exist. Every other command does this implicitly; init is useful to
verify the connection settings.

Example:
  docsql init --dsn ./docs.db
  docsql init --driver mysql --dsn 'user:pass@tcp(localhost:3306)/app' --table people`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := rootOpts.openCollection(cmd.Context())
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			return rootOpts.formatter(cmd).Success(InitResult{
				Driver: st.Dialect().Name(),
				Table:  st.Table(),
			})
		},
	}
}
