package cli

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semnotes/config"
	"semnotes/internal/adapter/embedding"
)

// resetFlags restores every flag to its default so each run starts clean.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	rootDir = ""
	cfgFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--dir", dir, "--owner", "u1"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCaptureSearchListDelete(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "capture", "I love building AI products")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	_, err = runCLI(t, dir, "capture", "buy", "milk", "and", "eggs")
	require.NoError(t, err)

	out, err = runCLI(t, dir, "search", "AI", "--threshold", "0.3")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "I love building AI products")

	out, err = runCLI(t, dir, "list", "--status", "ready")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "buy milk and eggs")

	_, err = runCLI(t, dir, "delete", id)
	require.NoError(t, err)

	out, err = runCLI(t, dir, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, id)
}

func TestEditBumpsRevision(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "capture", "first draft")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = runCLI(t, dir, "edit", id, "second", "draft", "--revision", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "revision 3 (ready)")

	_, err = runCLI(t, dir, "edit", id, "stale", "--revision", "1")
	assert.Error(t, err)
}

func TestCaptureRejectsBlankContent(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "capture", "   ")
	assert.Error(t, err)
}

func TestReindexAll(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, "capture", "notes from the meeting")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "reindex", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Reindexed: 1")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t c", 10))
	assert.Equal(t, "abcdefg...", preview("abcdefghijklmnop", 10))
}

func TestOpenStoreTracksEmbeddingConfig(t *testing.T) {
	for _, backend := range []string{"bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			rootDir = t.TempDir()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			open := func(model string) *app {
				cfg = config.DefaultConfig()
				cfg.Store.Backend = backend
				cfg.Embedding.Model = model
				a := &app{cfg: cfg, logger: logger, embedder: embedding.NewLocalEmbedder(8)}
				require.NoError(t, a.openStore())
				require.NotNil(t, a.tracker)
				return a
			}

			a := open("model-a")
			check, err := a.tracker.CheckEmbedding(a.cfg.EmbeddingHash())
			require.NoError(t, err)
			assert.False(t, check.NeedsReindex)
			require.NoError(t, a.store.Close())

			// Same dimension, different model: the recorded hash is kept so the
			// mismatch stays visible until a full reindex.
			b := open("model-b")
			check, err = b.tracker.CheckEmbedding(b.cfg.EmbeddingHash())
			require.NoError(t, err)
			assert.True(t, check.NeedsReindex)
			require.NoError(t, b.store.Close())
		})
	}
}
