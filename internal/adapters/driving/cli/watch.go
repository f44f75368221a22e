package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// settleDelay gives the writing process time to finish before the new
// file is staged. Create events fire on open, not close.
const settleDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into a directory",
	Long: `Watches one directory (no recursion) and runs the full ingestion
pipeline on every file created in it. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := ensureServices(Options{}); err != nil {
		return err
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	cmd.Printf("Watching %s (ctrl-c to stop)\n", dir)
	ctx := cmd.Context()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			fileInfo, err := os.Stat(event.Name)
			if err != nil || fileInfo.IsDir() {
				continue
			}

			time.Sleep(settleDelay)
			reports, err := services.Processor.Process(ctx, event.Name)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.Error("Processing %s failed: %v", event.Name, err)
				continue
			}
			printReports(cmd, reports)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error: %v", err)
		}
	}
}
