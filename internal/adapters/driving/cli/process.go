package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// ErrPartial signals that some inputs failed while others were indexed or
// skipped. main maps it to exit code 2.
var ErrPartial = errors.New("some inputs failed")

var (
	processURLFile string
	processKeep    bool
	processWorkers int
	processClean   bool
)

var processCmd = &cobra.Command{
	Use:   "process [sources...]",
	Short: "Ingest and index documents",
	Long: `Stages each source (local path or URL), deduplicates by content hash,
extracts text and image units, embeds them, and commits the document to
the index. Zip archives expand into one document per member.

Already-indexed content is skipped. Content stuck at an intermediate
stage from an earlier interrupted run resumes where it left off.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processURLFile, "url-file", "", "file with one source URL per line")
	processCmd.Flags().BoolVar(&processKeep, "keep-staging", false, "keep staged copies after a successful commit")
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "concurrent embedding batches (0 = default)")
	processCmd.Flags().BoolVar(&processClean, "clean", false, "remove staging leftovers and exit")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if err := ensureServices(Options{Workers: processWorkers, KeepStaging: processKeep}); err != nil {
		return err
	}
	ctx := cmd.Context()

	if processClean {
		if err := services.Processor.CleanStaging(ctx); err != nil {
			return fmt.Errorf("cleaning staging: %w", err)
		}
		cmd.Println("Staging area cleaned.")
		return nil
	}

	sources := args
	if processURLFile != "" {
		fromFile, err := readSourceFile(processURLFile)
		if err != nil {
			return err
		}
		sources = append(sources, fromFile...)
	}
	if len(sources) == 0 {
		return errors.New("no sources given (pass paths/URLs or --url-file)")
	}

	bar := progressbar.NewOptions(len(sources),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	var reports []domain.ProcessReport
	for _, source := range sources {
		rs, err := services.Processor.Process(ctx, source)
		if err != nil {
			// cancellation or digest contention, not a pipeline failure
			return err
		}
		reports = append(reports, rs...)
		_ = bar.Add(1)
	}

	printReports(cmd, reports)
	return exitStatus(reports)
}

// readSourceFile reads one source per line, skipping blanks and comments.
func readSourceFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening url file: %w", err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading url file: %w", err)
	}
	return sources, nil
}

// printReports writes one line per document, with unit errors indented.
func printReports(cmd *cobra.Command, reports []domain.ProcessReport) {
	for _, r := range reports {
		switch r.Outcome {
		case domain.OutcomeIndexed:
			if r.Partial() {
				cmd.Printf("  indexed  %s (%d/%d units)\n", r.Source, r.UnitsIndexed, r.UnitsTotal)
			} else {
				cmd.Printf("  indexed  %s\n", r.Source)
			}
		case domain.OutcomeSkipped:
			cmd.Printf("  skipped  %s (already indexed)\n", r.Source)
		case domain.OutcomeFailed:
			cmd.Printf("  failed   %s\n", r.Source)
		}
		for _, unitErr := range r.Errors {
			if unitErr.UnitIndex >= 0 {
				cmd.Printf("           unit %d [%s]: %s\n", unitErr.UnitIndex, unitErr.Stage, unitErr.Message)
			} else {
				cmd.Printf("           [%s]: %s\n", unitErr.Stage, unitErr.Message)
			}
		}
	}
}

// exitStatus folds the reports into the command's exit semantics: nil
// when everything succeeded, ErrPartial when some of it did, and a plain
// error when nothing was indexed or skipped at all.
func exitStatus(reports []domain.ProcessReport) error {
	var succeeded, failed, partial int
	for _, r := range reports {
		switch {
		case r.Outcome == domain.OutcomeFailed:
			failed++
		case r.Partial():
			succeeded++
			partial++
		default:
			succeeded++
		}
	}

	if failed > 0 && succeeded == 0 {
		return fmt.Errorf("all %d inputs failed", failed)
	}
	if failed > 0 || partial > 0 {
		return ErrPartial
	}
	return nil
}
