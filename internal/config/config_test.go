package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsondb/internal/record"
)

func TestLoad_AllFormatsAgree(t *testing.T) {
	want := Config{
		Database: "/var/lib/jsondb/data.db",
		Indexes: []record.Index{
			{Path: "/users", Field: "name"},
			{Path: "/posts", Field: "author"},
		},
		BatchBytes: 65536,
		BatchRows:  100,
		LogLevel:   "debug",
	}
	for _, name := range []string{"full.yaml", "full.cue", "full.json"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestParseYAML_Defaults(t *testing.T) {
	for _, doc := range []string{"", "{}", "indexes: []\n"} {
		cfg, err := ParseYAML([]byte(doc), "empty.yaml")
		require.NoError(t, err, doc)
		assert.Equal(t, DefaultDatabase, cfg.Database)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Zero(t, cfg.BatchRows)
		assert.Empty(t, cfg.Indexes)
	}
}

func TestParse_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "databse: x.db\n", "databse"},
		{"negative batch", "batch_rows: -1\n", "batch_rows"},
		{"batch too large", "batch_rows: 100000\n", "batch_rows"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"empty field", "indexes:\n  - path: /users\n    field: \"\"\n", "field"},
		{"missing field", "indexes:\n  - path: /users\n", "field"},
		{"wrong type", "batch_bytes: lots\n", "batch_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCUE_RejectsInvalid(t *testing.T) {
	_, err := ParseCUE([]byte(`batch_rows: "many"`), "bad.cue")
	require.Error(t, err)

	_, err = ParseCUE([]byte(`database: `), "broken.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile cue")
}

func TestParseYAML_Malformed(t *testing.T) {
	_, err := ParseYAML([]byte("indexes: [\n"), "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex("/users:name")
	require.NoError(t, err)
	assert.Equal(t, record.Index{Path: "/users", Field: "name"}, idx)

	idx, err = ParseIndex(":name")
	require.NoError(t, err)
	assert.Equal(t, record.Index{Path: "", Field: "name"}, idx)

	for _, bad := range []string{"/users", "/users:", ""} {
		_, err := ParseIndex(bad)
		assert.Error(t, err, bad)
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: ""}.Level())
}
