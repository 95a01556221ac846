package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jsondb/internal/record"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	Order      string
	StartAt    string
	StartAfter string
	EndAt      string
	EndBefore  string
	Depth      int
	Limit      int
	Pretty     bool
	Callback   string
}

func (o GetOptions) toRecord() (record.GetOptions, error) {
	order, err := record.ParseOrder(o.Order)
	if err != nil {
		return record.GetOptions{}, err
	}
	return record.GetOptions{
		Order:        order,
		StartAt:      o.StartAt,
		StartAfter:   o.StartAfter,
		EndAt:        o.EndAt,
		EndBefore:    o.EndBefore,
		Depth:        o.Depth,
		LimitToFirst: o.Limit,
		PrettyPrint:  o.Pretty,
		Callback:     o.Callback,
	}, nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Stream the document at a path as JSON",
		Long: `Stream the document stored at <path> to stdout. The document is written
as-is in both output formats. Exits with status 1 when nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Order, "order", "asc", "child order (asc|desc)")
	cmd.Flags().StringVar(&opts.StartAt, "start-at", "", "first child key to include")
	cmd.Flags().StringVar(&opts.StartAfter, "start-after", "", "include children after this key")
	cmd.Flags().StringVar(&opts.EndAt, "end-at", "", "last child key to include")
	cmd.Flags().StringVar(&opts.EndBefore, "end-before", "", "include children before this key")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "levels to expand; deeper subtrees print as true (0 = all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "number of children to return (0 = all)")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the output")
	cmd.Flags().StringVar(&opts.Callback, "callback", "", "wrap the output in a JSONP callback")

	return cmd
}

func runGet(cmd *cobra.Command, rootOpts *RootOptions, opts *GetOptions, p string) error {
	return withSession(cmd, rootOpts, func(s *session) error {
		getOpts, err := opts.toRecord()
		if err != nil {
			return s.out.Fail(ErrCodeGeneric, err)
		}
		stream, err := s.engine.GetAsStream(cmd.Context(), p, getOpts)
		if err != nil {
			return s.out.Fail(ErrCodeGeneric, err)
		}
		if stream == nil {
			return s.out.NotFound(p)
		}

		out := cmd.OutOrStdout()
		n, err := stream.WriteTo(out)
		if err != nil {
			return s.out.Fail(ErrCodeIO, err)
		}
		fmt.Fprintln(out)
		s.out.VerboseLog("Wrote %d bytes", n)
		return nil
	})
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether anything is stored at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				exists, err := s.engine.Exists(cmd.Context(), args[0])
				if err != nil {
					return s.out.Fail(ErrCodeGeneric, err)
				}
				return s.out.Result(exists, map[string]any{"exists": exists})
			})
		},
	}
}
