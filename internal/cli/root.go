package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jsondb/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Indexes    []string // "path:field"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the jsondb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "jsondb",
		Short: "jsondb - JSON documents in a relational table",
		Long: `Store, update and stream JSON documents kept as one row per value
in a single SQL table, addressed by slash-separated paths.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (.yaml, .json or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database file (default "+config.DefaultDatabase+")")
	cmd.PersistentFlags().StringArrayVar(&opts.Indexes, "index", nil, "declare an index as path:field (repeatable)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewExistsCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	for _, s := range o.Indexes {
		idx, err := config.ParseIndex(s)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Indexes = append(cfg.Indexes, idx)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
