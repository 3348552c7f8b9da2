package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"semnotes/internal/domain"
	"semnotes/internal/usecase"
)

var (
	searchLimit     int
	searchThreshold float64
	editRevision    int64
	listStatus      string
	listLimit       int
)

var captureCmd = &cobra.Command{
	Use:   "capture <text>...",
	Short: "Save a note",
	Long: `Save a note and embed it so it can be found by meaning.

Examples:
  semnotes capture "I love building AI products"
  semnotes capture buy milk and eggs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCapture,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Find notes by meaning",
	Long: `Search your notes by semantic similarity, best match first.

Examples:
  semnotes search AI
  semnotes search "what should I buy" --threshold 0.3 --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var editCmd = &cobra.Command{
	Use:   "edit <note-id> <text>...",
	Short: "Replace a note's text and re-embed it",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runEdit,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", -1, "minimum similarity 0..1 (default from config)")
	editCmd.Flags().Int64Var(&editRevision, "revision", 0, "expected current revision (0 skips the check)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "only list notes in this state: ready, pending or failed")
	listCmd.Flags().IntVarP(&listLimit, "limit", "k", 0, "maximum number of notes (0 lists all)")

	rootCmd.AddCommand(captureCmd, searchCmd, editCmd, listCmd, deleteCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.capture.Capture(cmd.Context(), ownerID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	q := usecase.SearchQuery{OwnerID: ownerID, Text: strings.Join(args, " ")}
	if cmd.Flags().Changed("limit") {
		q.Limit = &searchLimit
	}
	if cmd.Flags().Changed("threshold") {
		q.Threshold = &searchThreshold
	}

	results, err := a.search.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching notes.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s  %s\n", i+1, r.Score, r.Note.ID, r.Note.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "   %s\n", preview(r.Note.Content, 200))
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	note, err := a.reindex.Reembed(cmd.Context(), ownerID, args[0], strings.Join(args[1:], " "), editRevision)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s revision %d (%s)\n", note.ID, note.Revision, note.Embedding.State)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	notes, err := a.notes.List(cmd.Context(), ownerID, domain.EmbeddingState(listStatus), listLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, n := range notes {
		fmt.Fprintf(out, "%s  %-7s  r%d  %s\n", n.ID, n.Embedding.State, n.Revision, preview(n.Content, 80))
		if n.Embedding.State == domain.EmbeddingFailed {
			fmt.Fprintf(out, "    error: %s\n", n.Embedding.Reason)
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	return a.notes.Delete(cmd.Context(), ownerID, args[0])
}

// preview flattens whitespace and truncates s to max runes.
func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
