package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

func givenConfigFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "libraryd.yaml")
	content := "database:\n  driver: sqlite\n  dsn: \"" + lendingtest.SQLiteDSN(t.TempDir()) + "\"\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "error in arranging test data")

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func Test_Commands_MigrateVerifyStats(t *testing.T) {
	// arrange
	configPath := givenConfigFile(t)

	// act + assert
	out, err := run(t, "migrate", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = run(t, "verify", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "all books conserve their copies")

	out, err = run(t, "stats", "--config", configPath, "--refresh")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, jsoniter.UnmarshalFromString(out, &summary))
	assert.EqualValues(t, 0, summary["totalBooks"])
	assert.Contains(t, summary, "loanStatistics")
}

func Test_Commands_RejectInvalidConfig(t *testing.T) {
	_, err := run(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}
