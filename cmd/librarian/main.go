// Command librarian is the entry point for the document ingestion and
// semantic retrieval CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/command"
	configfile "github.com/custodia-labs/librarian-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/embedding/clip"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/fetch"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/ocr/tesseract"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/vectordb"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/librarian-cli/internal/archive"
	"github.com/custodia-labs/librarian-cli/internal/backup"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/core/services"
	"github.com/custodia-labs/librarian-cli/internal/extractors"
	"github.com/custodia-labs/librarian-cli/internal/extractors/image"
	"github.com/custodia-labs/librarian-cli/internal/extractors/pdf"
	"github.com/custodia-labs/librarian-cli/internal/extractors/text"
	"github.com/custodia-labs/librarian-cli/internal/stager"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// closers collects everything that needs a Close after the command runs.
var closers []func() error

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetBuilder(buildServices)
	err := cli.Execute(ctx, version)

	for _, c := range closers {
		if closeErr := c(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", closeErr)
		}
	}

	switch {
	case errors.Is(err, cli.ErrPartial):
		os.Exit(2)
	case err != nil:
		os.Exit(1)
	}
}

// buildServices wires the full adapter stack from configuration. Called
// lazily on the first command that needs services, so `version` and flag
// parse errors never touch the stores.
func buildServices(opts cli.Options) (*cli.Services, error) {
	cfg, err := configfile.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	dataDir := cfg.GetString("data.dir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(home, ".librarian", "data")
	}
	libraryDir := filepath.Join(dataDir, "library")

	meta, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}
	closers = append(closers, meta.Close)

	vectors, err := vectordb.NewIndex(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	closers = append(closers, vectors.Close)

	httpFetcher := fetch.NewHTTP(fetch.HTTPConfig{
		RequestsPerSecond: float64(cfg.GetInt("fetch.requests_per_second")),
	})
	// the file fetcher claims scheme-less sources, so it goes last
	staging, err := stager.New(filepath.Join(dataDir, "staging"), meta, httpFetcher, fetch.NewFile())
	if err != nil {
		return nil, fmt.Errorf("preparing staging area: %w", err)
	}

	runner := command.NewRunner()
	ocrEngine := tesseract.New(runner, cfg.GetString("ocr.language"))

	// OCR of images is opt-in; PDFs always fall back to OCR for pages
	// with no text layer.
	var imageOCR driven.OCREngine
	if cfg.GetBool("ocr.images") {
		imageOCR = ocrEngine
	}

	registry := extractors.NewRegistry()
	registry.Register(text.New())
	registry.Register(pdf.New(runner, ocrEngine))
	registry.Register(image.New(imageOCR))

	textEmbedder, imageEmbedder, err := buildEmbedders(cfg)
	if err != nil {
		return nil, err
	}

	orchestrator := services.NewOrchestrator(services.OrchestratorConfig{
		Stager:        staging,
		Meta:          meta,
		Vectors:       vectors,
		Extractors:    registry,
		TextEmbedder:  textEmbedder,
		ImageEmbedder: imageEmbedder,
		Archive:       archive.NewZipExtractor(),
		LibraryDir:    libraryDir,
		Workers:       opts.Workers,
		KeepStaging:   opts.KeepStaging,
	})

	backupRoot := cfg.GetString("backup.dir")
	if backupRoot == "" {
		backupRoot = filepath.Join(dataDir, "backups")
	}
	manager := backup.NewManager(backup.Config{
		BackupRoot: backupRoot,
		LibraryDir: libraryDir,
		Meta:       meta,
		Vectors:    vectors,
		Gate:       orchestrator.CommitGate(),
	})

	return &cli.Services{
		Processor: orchestrator,
		Query:     services.NewQuery(meta, vectors, textEmbedder, imageEmbedder),
		Backup:    manager,
	}, nil
}

// buildEmbedders picks the embedding backend. The clip provider serves
// both modalities from one shared space; ollama is text-only, so image
// units and image queries fail cleanly.
func buildEmbedders(cfg driven.ConfigStore) (driven.TextEmbedder, driven.ImageEmbedder, error) {
	timeout := time.Duration(cfg.GetInt("embedding.timeout_seconds")) * time.Second

	switch provider := cfg.GetString("embedding.provider"); provider {
	case "", "clip":
		embedder := clip.New(clip.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Timeout:    timeout,
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
		closers = append(closers, embedder.Close)
		return embedder, embedder, nil

	case "ollama":
		embedder := ollama.New(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Timeout:    timeout,
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
		closers = append(closers, embedder.Close)
		return embedder, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q (want clip or ollama)", provider)
	}
}
