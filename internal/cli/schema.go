package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the records table and its lookup index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				if err := s.engine.CreateTables(cmd.Context()); err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				s.out.VerboseLog("Backend: %s", s.engine.Kind())
				return s.out.Result("created", map[string]any{
					"created": true,
					"indexes": s.engine.IndexPaths(),
				})
			})
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Drop the records table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				if err := s.engine.DropTables(cmd.Context()); err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result("dropped", map[string]any{"dropped": true})
			})
		},
	}
}
