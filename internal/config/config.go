// Package config loads jsondb settings from a YAML or CUE file.
//
// Both formats are checked against one embedded CUE schema before they are
// decoded, so a typo in a field name or a negative batch size is reported
// with the same message whichever format was used.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/jsondb/internal/record"
)

//go:embed schema.cue
var schemaSource string

// DefaultDatabase is the SQLite file used when none is configured.
const DefaultDatabase = "jsondb.db"

// Config holds everything needed to open a store.
type Config struct {
	Database   string         `json:"database,omitempty" yaml:"database"`
	Indexes    []record.Index `json:"indexes,omitempty" yaml:"indexes"`
	BatchBytes int            `json:"batch_bytes,omitempty" yaml:"batch_bytes"`
	BatchRows  int            `json:"batch_rows,omitempty" yaml:"batch_rows"`
	LogLevel   string         `json:"log_level,omitempty" yaml:"log_level"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{Database: DefaultDatabase, LogLevel: "info"}
}

// Load reads the file at path. Files ending in .cue are evaluated as CUE;
// anything else is parsed as YAML (which includes JSON).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return ParseYAML(data, path)
}

// ParseYAML parses and validates a YAML document. name is used in error
// messages.
func ParseYAML(data []byte, name string) (Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("%s: parse yaml: %w", name, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	ctx := cuecontext.New()
	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", name, err)
	}
	return decode(ctx, v, name)
}

// ParseCUE evaluates and validates a CUE document. name is used in error
// messages.
func ParseCUE(data []byte, name string) (Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("%s: compile cue: %w", name, err)
	}
	return decode(ctx, v, name)
}

func decode(ctx *cue.Context, v cue.Value, name string) (Config, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("%s: invalid config: %w", name, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: decode config: %w", name, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields. Batch sizes left at zero select the
// store's own defaults.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// ParseIndex parses a "path:field" index declaration.
func ParseIndex(s string) (record.Index, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 || s[i+1:] == "" {
		return record.Index{}, fmt.Errorf("index %q: want path:field", s)
	}
	return record.Index{Path: s[:i], Field: s[i+1:]}, nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
