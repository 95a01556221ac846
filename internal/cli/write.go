package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// openBody returns the document named by args[1], or stdin when it is
// absent or "-".
func openBody(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) < 2 || args[1] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[1])
}

// runWrite opens the input document and passes it to fn.
func runWrite(cmd *cobra.Command, rootOpts *RootOptions, args []string, fn func(s *session, body io.Reader) error) error {
	return withSession(cmd, rootOpts, func(s *session) error {
		body, err := openBody(cmd, args)
		if err != nil {
			return s.out.Fail(ErrCodeIO, err)
		}
		defer body.Close()
		return fn(s, body)
	})
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> [file|-]",
		Short: "Replace the document at a path",
		Long: `Replace everything stored at <path> with the JSON document read from
file, or from stdin when file is omitted or "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, args, func(s *session, body io.Reader) error {
				if err := s.engine.Set(cmd.Context(), args[0], body); err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result(args[0], map[string]any{"path": args[0]})
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <path> [file|-]",
		Short: "Replace individual fields below a path",
		Long: `Read a JSON object and replace each of its fields below <path>, leaving
other fields untouched. Field names may be paths, e.g. {"props/city": "Miami"}.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, args, func(s *session, body io.Reader) error {
				if err := s.engine.Update(cmd.Context(), args[0], body); err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result(args[0], map[string]any{"path": args[0]})
			})
		},
	}
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <path> [file|-]",
		Short: "Store a document under a fresh key and print the key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, args, func(s *session, body io.Reader) error {
				key, err := s.engine.Push(cmd.Context(), args[0], body)
				if err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result(key, map[string]any{"key": key})
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove the subtree at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				removed, err := s.engine.Delete(cmd.Context(), args[0])
				if err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result(removed, map[string]any{"removed": removed})
			})
		},
	}
}
