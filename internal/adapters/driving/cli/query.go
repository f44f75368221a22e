package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

var (
	queryImagePath   string
	queryLimit       int
	queryModality    string
	queryJSON        bool
	queryInteractive bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the indexed collection",
	Long: `Embeds the query and returns the most similar indexed units. Text and
image documents share one vector space, so a text query can retrieve
images and an image query can retrieve text.

Quote a phrase to match it literally instead of semantically:

  librarian query 'invoices mentioning "net 30"'

Use --image to query by example image instead of text, --modality to
restrict results to one modality, and --interactive for the TUI.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryImagePath, "image", "", "query by example image file")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "maximum number of results")
	queryCmd.Flags().StringVar(&queryModality, "modality", "", "restrict results to one modality (text|image)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryInteractive, "interactive", false, "open the interactive query view")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := ensureServices(Options{}); err != nil {
		return err
	}

	if queryInteractive {
		return runInteractive(cmd)
	}

	modality, err := parseModality(queryModality)
	if err != nil {
		return err
	}
	opts := domain.QueryOptions{Limit: queryLimit, Modality: modality}
	ctx := cmd.Context()

	var results []domain.QueryResult
	switch {
	case queryImagePath != "":
		image, err := os.ReadFile(queryImagePath)
		if err != nil {
			return fmt.Errorf("reading query image: %w", err)
		}
		results, err = services.Query.QueryImage(ctx, image, opts)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	case len(args) == 1:
		results, err = services.Query.QueryText(ctx, args[0], opts)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	default:
		return errors.New("give query text or --image")
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	return outputQueryTable(cmd, results)
}

// parseModality validates the --modality flag. Empty means cross-modal.
func parseModality(s string) (domain.Modality, error) {
	switch s {
	case "":
		return "", nil
	case string(domain.ModalityText):
		return domain.ModalityText, nil
	case string(domain.ModalityImage):
		return domain.ModalityImage, nil
	default:
		return "", fmt.Errorf("unknown modality %q (want text or image)", s)
	}
}

func runInteractive(cmd *cobra.Command) error {
	app, err := tui.NewApp(&tui.Ports{Query: services.Query})
	if err != nil {
		return fmt.Errorf("creating interactive view: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interactive view: %w", err)
	}
	return nil
}

func outputQueryJSON(cmd *cobra.Command, results []domain.QueryResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, results []domain.QueryResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Document.Source, r.Score)

		switch r.Unit.Modality {
		case domain.ModalityImage:
			cmd.Printf("      image: %s\n", filepath.Base(r.Unit.ImageRef))
		case domain.ModalityText:
			if snippet := querySnippet(r.Unit.Text); snippet != "" {
				cmd.Printf("      %s\n", snippet)
			}
		}
		if r.Unit.Page > 0 {
			cmd.Printf("      page %d\n", r.Unit.Page)
		}
		cmd.Println()
	}
	return nil
}

// querySnippet collapses whitespace and trims the unit text to one line.
func querySnippet(text string) string {
	const maxLen = 120
	snippet := strings.Join(strings.Fields(text), " ")
	if len(snippet) > maxLen {
		snippet = snippet[:maxLen-3] + "..."
	}
	return snippet
}
