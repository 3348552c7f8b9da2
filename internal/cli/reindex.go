package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var reindexAll bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed pending and failed notes",
	Long: `Re-embed notes whose embedding is pending or failed. With --all every
note is re-embedded, which is needed after changing the embedding model.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Capture one note per text file under a directory",
	Long: `Walk a directory and capture each matching file as a note. Include and
exclude patterns come from the import section of the config.

Examples:
  semnotes import ~/journal`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexAll, "all", false, "re-embed every note, not only pending and failed ones")
	rootCmd.AddCommand(reindexCmd, importCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.reindex.Reindex(ctx, ownerID, reindexAll, newProgress("Reindexing"))
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if reindexAll && a.tracker != nil && result.Failed == 0 && result.Conflicts == 0 {
		if err := a.tracker.MarkEmbedding(a.cfg.EmbeddingHash()); err != nil {
			return fmt.Errorf("failed to record embedding configuration: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reindex complete:\n")
	fmt.Fprintf(out, "  Reindexed: %d\n", result.Reindexed)
	fmt.Fprintf(out, "  Failed:    %d\n", result.Failed)
	fmt.Fprintf(out, "  Conflicts: %d (edited concurrently)\n", result.Conflicts)
	printWarnings(cmd, result.Errors)
	if result.Failed > 0 {
		return fmt.Errorf("%d notes failed to embed", result.Failed)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %s...\n", path)
	result, err := a.imports.Import(ctx, ownerID, path, newProgress("Importing"))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Import complete:\n")
	fmt.Fprintf(out, "  Files imported: %d\n", result.FilesImported)
	fmt.Fprintf(out, "  Files skipped:  %d\n", result.FilesSkipped)
	printWarnings(cmd, result.Errors)
	return nil
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWarnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(out, "  - %s\n", w)
	}
}
