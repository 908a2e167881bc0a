package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"dedupe", "score", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "vcf-dupe", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestScoreCommand_RequiresTwoFiles(t *testing.T) {
	assert.Error(t, scoreCmd.Args(scoreCmd, []string{"a.vcf"}))
	assert.NoError(t, scoreCmd.Args(scoreCmd, []string{"a.vcf", "b.vcf"}))
}

// writeCards writes raw vCards to dir/name.
func writeCards(t *testing.T, dir, name string, cards ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(cards, "")), 0o644))
	return path
}

func vcard(uid, name, email string) string {
	return fmt.Sprintf("BEGIN:VCARD\r\nVERSION:3.0\r\nUID:%s\r\nFN:%s\r\nEMAIL:%s\r\nEND:VCARD\r\n", uid, name, email)
}

func TestDedupe_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0o755))
	writeCards(t, in, "phone.vcf", vcard("a", "John Smith", "john@x.com"))
	writeCards(t, in, "laptop.vcf", vcard("b", "John Smith", "JOHN@x.com"), vcard("c", "Alice Jones", "alice@y.com"))

	merged := filepath.Join(dir, "merged")
	stateDB := filepath.Join(dir, "state.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"merged_dir: %s\nkeep_originals: true\nstate_db: %s\nlog_level: error\n", merged, stateDB)), 0o644))

	rootCmd.SetArgs([]string{"dedupe", "--config", cfgPath, "--non-interactive", in})
	require.NoError(t, rootCmd.Execute())

	entries, err := os.ReadDir(merged)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "merged_"), entries[0].Name())

	// Originals are untouched with keep_originals.
	data, err := os.ReadFile(filepath.Join(in, "laptop.vcf"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Alice Jones")
	assert.Contains(t, string(data), "UID:b")

	st, err := store.NewSQLite(stateDB)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Records)
	assert.Equal(t, 1, runs[0].Merges)
	assert.Equal(t, "done", runs[0].State)
}
