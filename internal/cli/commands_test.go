package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command against db with stdin as input.
func runCLI(t *testing.T, db, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// createTestDB returns the path of an initialised database.
func createTestDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "cli.db")
	res := runCLI(t, db, "", "init")
	require.NoError(t, res.err, res.stdout)
	return db
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "jsondb.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCLI_SetAndGet(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, `{"name":"Hiram Chirino"}`, "set", "/test")
	require.NoError(t, res.err)
	assert.Equal(t, "/test\n", res.stdout)

	res = runCLI(t, db, "", "get", "/")
	require.NoError(t, res.err)
	assert.Equal(t, `{"test":{"name":"Hiram Chirino"}}`+"\n", res.stdout)

	res = runCLI(t, db, "", "get", "/", "--callback", "myfunction")
	require.NoError(t, res.err)
	assert.Equal(t, `myfunction({"test":{"name":"Hiram Chirino"}})`+"\n", res.stdout)

	res = runCLI(t, db, "", "get", "/", "--pretty")
	require.NoError(t, res.err)
	assert.Equal(t, "{\n  \"test\": {\n    \"name\": \"Hiram Chirino\"\n  }\n}\n", res.stdout)
}

func TestCLI_SetFromFile(t *testing.T) {
	db := createTestDB(t)
	doc := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(doc, []byte(`[1,2,3]`), 0o644))

	res := runCLI(t, db, "", "set", "/numbers", doc)
	require.NoError(t, res.err)

	res = runCLI(t, db, "", "get", "/numbers/1")
	require.NoError(t, res.err)
	assert.Equal(t, "2\n", res.stdout)

	res = runCLI(t, db, "", "set", "/numbers", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [IO]")
}

func TestCLI_GetOptions(t *testing.T) {
	db := createTestDB(t)
	doc := `{"user1":{"value":1},"user2":{"value":2},"user3":{"value":3}}`
	require.NoError(t, runCLI(t, db, doc, "set", "/users").err)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--limit", "1"}, `{"user1":{"value":1}}`},
		{[]string{"--order", "desc", "--limit", "1"}, `{"user3":{"value":3}}`},
		{[]string{"--start-after", "user1", "--end-at", "user2"}, `{"user2":{"value":2}}`},
		{[]string{"--start-at", "user3"}, `{"user3":{"value":3}}`},
		{[]string{"--end-before", "user2"}, `{"user1":{"value":1}}`},
		{[]string{"--depth", "1"}, `{"user1":true,"user2":true,"user3":true}`},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			res := runCLI(t, db, "", append([]string{"get", "/users"}, tt.args...)...)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want+"\n", res.stdout)
		})
	}

	res := runCLI(t, db, "", "get", "/users", "--order", "sideways")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "INVALID_OPTION")
}

func TestCLI_GetMissing(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, "", "get", "/nothing")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [NOT_FOUND]")
}

func TestCLI_UpdateDeleteExists(t *testing.T) {
	db := createTestDB(t)
	require.NoError(t, runCLI(t, db, `{"name":"Hiram","props":{"city":"Tampa","state":"FL"}}`, "set", "/test").err)

	res := runCLI(t, db, `{"props/city":"Miami"}`, "update", "/test", "-")
	require.NoError(t, res.err)

	res = runCLI(t, db, "", "get", "/test")
	require.NoError(t, res.err)
	assert.Equal(t, `{"name":"Hiram","props":{"city":"Miami","state":"FL"}}`+"\n", res.stdout)

	res = runCLI(t, db, "", "delete", "/test/props")
	require.NoError(t, res.err)
	assert.Equal(t, "true\n", res.stdout)

	res = runCLI(t, db, "", "delete", "/test/props")
	require.NoError(t, res.err)
	assert.Equal(t, "false\n", res.stdout)

	res = runCLI(t, db, "", "exists", "/test/props")
	require.NoError(t, res.err)
	assert.Equal(t, "false\n", res.stdout)

	res = runCLI(t, db, "", "--format", "json", "exists", "/test/name")
	require.NoError(t, res.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"exists": true}, resp.Data)
}

func TestCLI_UpdateRejectsNonObject(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, `[1,2]`, "update", "/test")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [MALFORMED_DOCUMENT]")
}

func TestCLI_Push(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, `{"text":"hello"}`, "push", "/messages")
	require.NoError(t, res.err)
	key := strings.TrimSpace(res.stdout)
	parsed, err := uuid.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	res = runCLI(t, db, "", "get", "/messages/"+key+"/text")
	require.NoError(t, res.err)
	assert.Equal(t, `"hello"`+"\n", res.stdout)
}

func TestCLI_InvalidKey(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, `1`, "--format", "json", "set", "/a.b")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "INVALID_KEY", resp.Error.Code)
}

func TestCLI_Lookup(t *testing.T) {
	db := createTestDB(t)
	users := `{"u1":{"name":"Joe"},"u2":{"name":"Ann"},"u3":{"name":"Joe"}}`
	require.NoError(t, runCLI(t, db, users, "--index", "/users:name", "set", "/users").err)

	res := runCLI(t, db, "", "--index", "/users:name", "lookup", "/users", "name", "Joe")
	require.NoError(t, res.err)
	assert.Equal(t, "u1\nu3\n", res.stdout)

	// Without the index declaration the lookup scans, and says so.
	res = runCLI(t, db, "", "lookup", "/users", "name", "Joe")
	require.NoError(t, res.err)
	assert.Equal(t, "u1\nu3\n", res.stdout)
	assert.Contains(t, res.stderr, "not indexed")

	res = runCLI(t, db, "", "--format", "json", "lookup", "/users", "name", "Nobody")
	require.NoError(t, res.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, map[string]any{"ids": []any{}}, resp.Data)
}

func TestCLI_ConfigFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "configured.db")
	cfg := writeConfig(t, "database: "+db+"\nindexes:\n  - path: /users\n    field: name\n")

	var stdout bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "--format", "json", "init"})
	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, map[string]any{"created": true, "indexes": []any{"/users/#name"}}, resp.Data)

	_, err := os.Stat(db)
	assert.NoError(t, err)
}

func TestCLI_BadConfig(t *testing.T) {
	cfg := writeConfig(t, "batch_rows: -5\n")

	res := runCLI(t, filepath.Join(t.TempDir(), "x.db"), "", "--config", cfg, "init")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [CONFIG]")
}

func TestCLI_VerboseLogsChanges(t *testing.T) {
	db := createTestDB(t)

	res := runCLI(t, db, `1`, "-v", "set", "/a/1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "jsondb-updated")
	assert.Contains(t, res.stderr, "/a/1")
}

func TestCLI_Drop(t *testing.T) {
	db := createTestDB(t)

	require.NoError(t, runCLI(t, db, "", "drop").err)

	res := runCLI(t, db, "", "get", "/")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "STORAGE_UNAVAILABLE")

	require.NoError(t, runCLI(t, db, "", "init").err)
}

func TestCLI_Key(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "unused.db"), "", "key")
	require.NoError(t, res.err)
	_, err := uuid.Parse(strings.TrimSpace(res.stdout))
	assert.NoError(t, err)
}

func TestCLI_InvalidFormat(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "x.db"), "", "--format", "xml", "key")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid format")
}
