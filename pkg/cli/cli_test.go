package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup points the command tree at a config in a temp dir backed by the
// file store.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{"TRIPCAL_OWNER", "TRIPCAL_CALENDAR", "TRIPCAL_DARK_MODE", "TRIPCAL_LOG_LEVEL",
		"TRIPCAL_LOG_FORMAT", "TRIPCAL_AUTOSAVE_DELAY", "TRIPCAL_STORE_DRIVER", "TRIPCAL_STORE_DSN",
		"TRIPCAL_STORE_PATH", "TRIPCAL_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "TRIPCAL_ADDR", "TRIPCAL_CONFIG"} {
		t.Setenv(key, "")
	}

	cfg := filepath.Join(dir, "config.toml")
	body := "owner = \"u1\"\nlog_level = \"error\"\n\n[store]\ndriver = \"file\"\npath = \"" +
		filepath.ToSlash(filepath.Join(dir, "data.json")) + "\"\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0600))
	return cfg
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, cfg, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfg, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, stdin, args...)
	require.NoError(t, err, out)
	return out
}

func TestTripAndTaskCommands(t *testing.T) {
	cfg := setup(t)

	out := mustRun(t, cfg, "", "trip", "save", "T1", "--name", "Tokyo", "--start", "2025-06-01", "--end", "2025-06-03")
	assert.Contains(t, out, "saved trip T1 (2025-06-01..2025-06-03)")

	out = mustRun(t, cfg, "", "add", "Visa", "--date", "2025-06-02", "--trip", "T1", "-c", "important")
	assert.Contains(t, out, "created task")
	id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "created task"))

	out = mustRun(t, cfg, "2025-06-03 Passport\nno date here\n", "import", "--trip", "T1")
	assert.Contains(t, out, "imported 1 task(s)")
	assert.Contains(t, out, "line 2 skipped")

	out = mustRun(t, cfg, "", "agenda", "2025-06-02")
	assert.Contains(t, out, "Tokyo")
	assert.Contains(t, out, "Visa")
	assert.NotContains(t, out, "Passport")

	out = mustRun(t, cfg, "", "timeline", "T1", "--mode", "date", "--today", "2025-06-01")
	assert.Contains(t, out, "Visa (in progress)")
	assert.Contains(t, out, "Passport (waiting)")

	mustRun(t, cfg, "", "toggle", id)
	out = mustRun(t, cfg, "", "timeline", "T1", "--mode", "date", "--today", "2025-06-01")
	assert.Contains(t, out, "Visa (done)")
	assert.Contains(t, out, "Passport (in progress)")

	out = mustRun(t, cfg, "", "trips")
	assert.Contains(t, out, "1/2 50%")

	out = mustRun(t, cfg, "", "trip", "rm", "T1")
	assert.Contains(t, out, "deleted trip T1")
	assert.Contains(t, mustRun(t, cfg, "", "trips"), "no trips")
	assert.Contains(t, mustRun(t, cfg, "", "board", "important"), "Visa")

	mustRun(t, cfg, "", "rm", id)
	assert.NotContains(t, mustRun(t, cfg, "", "board", "important"), "Visa")
}

func TestCommandErrors(t *testing.T) {
	cfg := setup(t)

	_, err := run(t, cfg, "", "trip", "save", "T1", "--name", "Back", "--start", "2025-06-03", "--end", "2025-06-01")
	assert.True(t, model.IsValidation(err))

	_, err = run(t, cfg, "", "toggle", "abc")
	assert.Error(t, err)

	_, err = run(t, cfg, "", "timeline", "nope")
	assert.Error(t, err)

	_, err = run(t, cfg, "nothing dated", "import")
	assert.True(t, model.IsValidation(err))

	_, err = run(t, cfg, "2025-06-02 Visa", "import", "--trip", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTripContentCommands(t *testing.T) {
	cfg := setup(t)
	mustRun(t, cfg, "", "trip", "save", "T1", "--name", "Tokyo", "--start", "2025-06-01", "--end", "2025-06-03")

	mustRun(t, cfg, "", "trip", "note", "T1", "book", "ryokan")
	mustRun(t, cfg, "", "trip", "note", "T1", "rail pass")
	mustRun(t, cfg, "", "trip", "note", "T1", "--rm", "1")
	out := mustRun(t, cfg, "", "timeline", "T1")
	assert.Contains(t, out, "1. rail pass")
	assert.NotContains(t, out, "ryokan")

	outline := "# Day 1\n  [ ] pack\n  [x] print tickets\nlanding at noon\n"
	mustRun(t, cfg, outline, "trip", "outline", "T1")
	assert.Equal(t, outline, mustRun(t, cfg, "", "trip", "outline", "T1", "--show"))

	// Saving the trip again keeps its content.
	mustRun(t, cfg, "", "trip", "save", "T1", "--pin")
	assert.Equal(t, outline, mustRun(t, cfg, "", "trip", "outline", "T1", "--show"))
}

func TestThemeAndExport(t *testing.T) {
	cfg := setup(t)
	assert.Equal(t, "light\n", mustRun(t, cfg, "", "theme"))
	mustRun(t, cfg, "", "theme", "dark")
	assert.Equal(t, "dark\n", mustRun(t, cfg, "", "theme"))
	_, err := run(t, cfg, "", "theme", "blue")
	assert.Error(t, err)

	target := filepath.Join(t.TempDir(), "plan.xlsx")
	mustRun(t, cfg, "", "export", target)
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestParseOutline(t *testing.T) {
	blocks, err := parseOutline(strings.NewReader("# Day 1\n\n    [X] nested\nplain\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Block{
		{Kind: model.BlockHeading, Text: "Day 1"},
		{Kind: model.BlockCheck, Indent: 2, Text: "nested", Checked: true},
		{Kind: model.BlockText, Text: "plain"},
	}, blocks)
}
