package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jsondb/internal/keys"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <collection> <property> <value>",
		Short: "Print the keys of children whose property equals a string",
		Long: `Print the keys of the children of <collection> whose <property> is the
string <value>, one per line. Declared indexes (--index) are used when
they cover the lookup; otherwise every row is scanned.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				ids, err := s.engine.FetchIDsByPropertyValue(cmd.Context(), args[0], args[1], args[2])
				if err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				if s.out.Format == "json" {
					if ids == nil {
						ids = []string{}
					}
					return s.out.Success(map[string]any{"ids": ids})
				}
				for _, id := range ids {
					fmt.Fprintln(s.out.Writer, id)
				}
				return nil
			})
		},
	}
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print a fresh unique key",
		Long:  `Print a fresh key of the kind push uses. Keys sort in creation order.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			key := keys.Default.Generate()
			return f.Result(key, map[string]any{"key": key})
		},
	}
}
