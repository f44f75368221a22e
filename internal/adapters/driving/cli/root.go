// Package cli implements the command-line surface: process, query,
// backup, watch, and version.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/librarian-cli/internal/core/ports/driving"
	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// version is the build version, set via Execute.
var version = "dev"

// verbose enables debug logging across all commands.
var verbose bool

// Services bundles the driving-side services the commands call.
type Services struct {
	Processor driving.Processor
	Query     driving.QueryService
	Backup    driving.BackupService
}

// Options carries command-line knobs into service construction. The
// builder sees them before any store or embedder is created.
type Options struct {
	// Workers bounds concurrent embedding batches. Zero means default.
	Workers int

	// KeepStaging retains staged copies after a successful commit.
	KeepStaging bool
}

var (
	services *Services

	// builder wires real services on first use. Installed by main;
	// tests bypass it with SetServices.
	builder func(Options) (*Services, error)
)

// SetBuilder installs the factory that wires services on demand.
func SetBuilder(b func(Options) (*Services, error)) {
	builder = b
}

// SetServices installs pre-built services, overriding the builder.
func SetServices(s *Services) {
	services = s
}

// ensureServices makes the services available, building them if needed.
func ensureServices(opts Options) error {
	if services != nil {
		return nil
	}
	if builder == nil {
		return errors.New("services not configured")
	}
	built, err := builder(opts)
	if err != nil {
		return err
	}
	services = built
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "Personal document ingestion and semantic retrieval",
	Long: `Librarian ingests documents from local paths and URLs, extracts their
text and image content, embeds it into a shared vector space, and answers
similarity queries over the indexed collection.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. The context flows into every operation,
// so an interrupt cancels mid-pipeline work between durable stages.
func Execute(ctx context.Context, buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.ExecuteContext(ctx)
}
