// Package services implements the driving ports: the ingestion
// orchestrator and the query service.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driving"
	"github.com/custodia-labs/librarian-cli/internal/logger"
	"github.com/custodia-labs/librarian-cli/internal/stager"
)

// Ensure Orchestrator implements the interface.
var _ driving.Processor = (*Orchestrator)(nil)

// Default tuning values.
const (
	// DefaultWorkers bounds concurrent embedding batches.
	DefaultWorkers = 4

	// textBatchSize is how many text units travel in one embedding call.
	textBatchSize = 16

	// imageBatchSize is smaller because image payloads are heavy.
	imageBatchSize = 4
)

// OrchestratorConfig holds the orchestrator's collaborators and knobs.
type OrchestratorConfig struct {
	Stager     *stager.Stager
	Meta       driven.MetadataStore
	Vectors    driven.VectorIndex
	Extractors driven.ExtractorRegistry

	// TextEmbedder is required for text units.
	TextEmbedder driven.TextEmbedder

	// ImageEmbedder is optional; nil fails image units individually.
	ImageEmbedder driven.ImageEmbedder

	// Archive is optional; nil disables archive expansion.
	Archive driven.ArchiveExtractor

	// LibraryDir is where committed originals are archived.
	LibraryDir string

	// Workers bounds concurrent embedding batches (default 4).
	Workers int

	// KeepStaging retains staged files after a successful commit.
	KeepStaging bool
}

// digestLock serialises processing per content hash.
type digestLock struct {
	mu   sync.Mutex
	refs int
}

// Orchestrator drives the ingestion pipeline: stage, dedup, extract,
// embed, and atomically commit across both stores. It is the only writer
// in the system.
type Orchestrator struct {
	cfg OrchestratorConfig

	// commitGate is held shared for every dual-store commit and
	// exclusively by the backup manager while it copies store files,
	// so no commit can split across a snapshot.
	commitGate sync.RWMutex

	locksMu sync.Mutex
	locks   map[string]*digestLock
}

// NewOrchestrator creates the ingestion orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Orchestrator{
		cfg:   cfg,
		locks: make(map[string]*digestLock),
	}
}

// CommitGate exposes the commit lock for the backup manager, which takes
// it exclusively during its copy phase.
func (o *Orchestrator) CommitGate() *sync.RWMutex {
	return &o.commitGate
}

// Process runs the full pipeline for one source. Archive inputs expand
// into one report per member. Pipeline failures are reported, not
// returned; the error return covers cancellation and lock contention.
func (o *Orchestrator) Process(ctx context.Context, source string) ([]domain.ProcessReport, error) {
	entry, err := o.cfg.Stager.Stage(ctx, source)
	switch {
	case errors.Is(err, domain.ErrAlreadyIndexed):
		logger.Info("Skipping %s: content already indexed", source)
		return []domain.ProcessReport{{
			Source:     source,
			DocumentID: entry.Digest,
			Outcome:    domain.OutcomeSkipped,
		}}, nil
	case err != nil:
		logger.Error("Staging %s failed: %v", source, err)
		return []domain.ProcessReport{{
			Source:  source,
			Outcome: domain.OutcomeFailed,
			Errors:  []domain.UnitError{{UnitIndex: -1, Stage: domain.StageExtract, Message: err.Error()}},
		}}, nil
	}

	if o.cfg.Archive != nil && o.cfg.Archive.IsArchive(entry.Path) {
		return o.processArchive(ctx, entry)
	}

	report, err := o.processEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	return []domain.ProcessReport{report}, nil
}

// processArchive expands an archive and processes each member as its own
// document. The archive itself never becomes a document.
func (o *Orchestrator) processArchive(ctx context.Context, entry *domain.StagingEntry) ([]domain.ProcessReport, error) {
	defer o.cfg.Stager.Remove(entry)

	dir, err := os.MkdirTemp("", "librarian-archive-*")
	if err != nil {
		return nil, fmt.Errorf("creating archive workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	members, err := o.cfg.Archive.Extract(ctx, entry.Path, dir)
	if err != nil {
		return []domain.ProcessReport{{
			Source:  entry.Source,
			Outcome: domain.OutcomeFailed,
			Errors:  []domain.UnitError{{UnitIndex: -1, Stage: domain.StageExtract, Message: err.Error()}},
		}}, nil
	}

	logger.Info("Archive %s: processing %d members", entry.Source, len(members))
	var reports []domain.ProcessReport
	for _, member := range members {
		memberReports, err := o.Process(ctx, member)
		if err != nil {
			return reports, err
		}
		reports = append(reports, memberReports...)
	}
	return reports, nil
}

// processEntry advances one staged document through the state machine,
// resuming from whatever durable stage an earlier run reached.
func (o *Orchestrator) processEntry(ctx context.Context, entry *domain.StagingEntry) (domain.ProcessReport, error) {
	report := domain.ProcessReport{Source: entry.Source, DocumentID: entry.Digest}

	release, err := o.acquire(entry.Digest)
	if err != nil {
		return report, fmt.Errorf("%s: %w", entry.Digest, err)
	}
	defer release()

	doc, err := o.cfg.Meta.GetDocument(ctx, entry.Digest)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		doc = &domain.Document{
			ID:     entry.Digest,
			Source: entry.Source,
			Kind:   entry.Kind,
			Size:   entry.Size,
			Status: domain.StatusStaged,
		}
		if createErr := o.cfg.Meta.CreateDocument(ctx, doc); createErr != nil {
			return o.failReport(report, domain.StageExtract, createErr), nil
		}
	case err != nil:
		return report, fmt.Errorf("loading document: %w", err)
	}

	if doc.Status == domain.StatusIndexed {
		report.Outcome = domain.OutcomeSkipped
		return report, nil
	}
	if doc.Status == domain.StatusFailed {
		// Failed is absorbing. The staged bytes are identical, so a
		// re-run would fail the same way.
		report.Outcome = domain.OutcomeFailed
		report.Errors = doc.Errors
		return report, nil
	}

	if doc.Kind == domain.KindUnknown {
		unitErr := domain.UnitError{UnitIndex: -1, Stage: domain.StageExtract, Message: domain.ErrUnknownKind.Error()}
		o.markFailed(ctx, doc, unitErr)
		report.Outcome = domain.OutcomeFailed
		report.Errors = doc.Errors
		return report, nil
	}

	// Stage 1: extract.
	if doc.Status == domain.StatusStaged {
		if err := o.extract(ctx, doc, entry); err != nil {
			return report, err
		}
	}
	report.Errors = doc.Errors
	if doc.Status == domain.StatusFailed {
		report.Outcome = domain.OutcomeFailed
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Stages 2 and 3: embed, then dual-store commit. A document found
	// durable at Embedded re-embeds: vectors are only durable once the
	// commit stage upserts them, and embedding is deterministic.
	units, err := o.cfg.Meta.GetUnits(ctx, doc.ID)
	if err != nil {
		return report, fmt.Errorf("loading units: %w", err)
	}
	report.UnitsTotal = len(units)

	embeddings := o.embed(ctx, doc, units)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(embeddings) == 0 {
		unitErr := domain.UnitError{UnitIndex: -1, Stage: domain.StageEmbed, Message: "no unit could be embedded"}
		o.markFailed(ctx, doc, unitErr)
		report.Outcome = domain.OutcomeFailed
		report.Errors = doc.Errors
		return report, nil
	}

	if doc.Status == domain.StatusExtracted {
		if err := o.cfg.Meta.UpdateStatus(ctx, doc.ID, domain.StatusEmbedded, doc.Errors); err != nil {
			return report, fmt.Errorf("recording embedded stage: %w", err)
		}
		doc.Status = domain.StatusEmbedded
	}

	if err := o.commit(ctx, doc, entry, units, embeddings); err != nil {
		// Durable status stays Embedded; the next run retries the
		// commit without re-extracting.
		logger.Error("Commit of %s failed: %v", doc.ID, err)
		report.Outcome = domain.OutcomeFailed
		report.Errors = append(doc.Errors, domain.UnitError{
			UnitIndex: -1, Stage: domain.StageCommit, Message: err.Error(),
		})
		return report, nil
	}

	if !o.cfg.KeepStaging {
		if err := o.cfg.Stager.Remove(entry); err != nil {
			logger.Debug("Staging cleanup: %v", err)
		}
	}

	report.Outcome = domain.OutcomeIndexed
	report.UnitsIndexed = len(embeddings)
	report.Errors = doc.Errors
	logger.Info("Indexed %s (%d/%d units)", doc.ID, report.UnitsIndexed, report.UnitsTotal)
	return report, nil
}

// extract runs the registered extractor and persists the unit set.
func (o *Orchestrator) extract(ctx context.Context, doc *domain.Document, entry *domain.StagingEntry) error {
	unitCh, err := o.cfg.Extractors.Extract(ctx, entry)
	if err != nil {
		o.markFailed(ctx, doc, domain.UnitError{UnitIndex: -1, Stage: domain.StageExtract, Message: err.Error()})
		return nil
	}

	var units []domain.ExtractionUnit
	usable := 0
	for unit := range unitCh {
		if unit.Failed {
			doc.Errors = append(doc.Errors, domain.UnitError{
				UnitIndex: unit.Index, Stage: domain.StageExtract, Message: unit.Error,
			})
		} else {
			usable++
		}
		units = append(units, unit)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if usable == 0 {
		o.markFailed(ctx, doc, domain.UnitError{
			UnitIndex: -1, Stage: domain.StageExtract, Message: "no usable units extracted",
		})
		return nil
	}

	if err := o.cfg.Meta.SaveUnits(ctx, doc.ID, units); err != nil {
		return fmt.Errorf("saving units: %w", err)
	}
	if err := o.cfg.Meta.UpdateStatus(ctx, doc.ID, domain.StatusExtracted, doc.Errors); err != nil {
		return fmt.Errorf("recording extracted stage: %w", err)
	}
	doc.Status = domain.StatusExtracted
	logger.Debug("Extracted %d units (%d usable) from %s", len(units), usable, doc.ID)
	return nil
}

// embed produces vectors for every usable unit, batched by modality on a
// bounded worker pool. Per-unit failures are recorded on the unit and the
// document; they never abort siblings.
func (o *Orchestrator) embed(ctx context.Context, doc *domain.Document, units []domain.ExtractionUnit) []domain.Embedding {
	results := make([]*domain.Embedding, len(units))
	failures := make([]*domain.UnitError, len(units))

	var textIdx, imageIdx []int
	for i, unit := range units {
		if unit.Failed {
			continue
		}
		switch unit.Modality {
		case domain.ModalityText:
			textIdx = append(textIdx, i)
		case domain.ModalityImage:
			imageIdx = append(imageIdx, i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for _, batch := range chunk(textIdx, textBatchSize) {
		g.Go(func() error {
			o.embedTextBatch(gctx, units, batch, results, failures)
			return gctx.Err()
		})
	}
	for _, batch := range chunk(imageIdx, imageBatchSize) {
		g.Go(func() error {
			o.embedImageBatch(gctx, units, batch, results, failures)
			return gctx.Err()
		})
	}
	// Batch failures are absorbed per unit; only cancellation surfaces.
	_ = g.Wait()

	var embeddings []domain.Embedding
	for i := range units {
		if failures[i] != nil {
			units[i].Failed = true
			units[i].Error = failures[i].Message
			doc.Errors = append(doc.Errors, *failures[i])
			continue
		}
		if results[i] != nil {
			embeddings = append(embeddings, *results[i])
		}
	}
	return embeddings
}

// embedTextBatch embeds one batch of text units. On a batch failure every
// unit is retried individually so one poison unit cannot sink the batch.
func (o *Orchestrator) embedTextBatch(ctx context.Context, units []domain.ExtractionUnit, batch []int, results []*domain.Embedding, failures []*domain.UnitError) {
	if o.cfg.TextEmbedder == nil {
		for _, i := range batch {
			failures[i] = &domain.UnitError{
				UnitIndex: units[i].Index, Stage: domain.StageEmbed,
				Message: domain.ErrEmbeddingUnavailable.Error(),
			}
		}
		return
	}

	texts := make([]string, len(batch))
	for n, i := range batch {
		texts[n] = units[i].Text
	}

	vectors, err := o.cfg.TextEmbedder.EmbedTexts(ctx, texts)
	if err == nil && len(vectors) == len(batch) {
		for n, i := range batch {
			results[i] = o.embeddingFor(units[i], vectors[n])
		}
		return
	}

	for _, i := range batch {
		if ctx.Err() != nil {
			return
		}
		vecs, err := o.cfg.TextEmbedder.EmbedTexts(ctx, []string{units[i].Text})
		if err != nil || len(vecs) != 1 {
			failures[i] = &domain.UnitError{
				UnitIndex: units[i].Index, Stage: domain.StageEmbed,
				Message: embedFailureMessage(err),
			}
			continue
		}
		results[i] = o.embeddingFor(units[i], vecs[0])
	}
}

// embedImageBatch embeds one batch of image units, reading payloads from
// their staged files.
func (o *Orchestrator) embedImageBatch(ctx context.Context, units []domain.ExtractionUnit, batch []int, results []*domain.Embedding, failures []*domain.UnitError) {
	for _, i := range batch {
		if ctx.Err() != nil {
			return
		}
		if o.cfg.ImageEmbedder == nil {
			failures[i] = &domain.UnitError{
				UnitIndex: units[i].Index, Stage: domain.StageEmbed,
				Message: domain.ErrEmbeddingUnavailable.Error(),
			}
			continue
		}

		payload, err := os.ReadFile(units[i].ImageRef)
		if err != nil {
			failures[i] = &domain.UnitError{
				UnitIndex: units[i].Index, Stage: domain.StageEmbed,
				Message: fmt.Sprintf("reading image: %v", err),
			}
			continue
		}

		vecs, err := o.cfg.ImageEmbedder.EmbedImages(ctx, [][]byte{payload})
		if err != nil || len(vecs) != 1 {
			failures[i] = &domain.UnitError{
				UnitIndex: units[i].Index, Stage: domain.StageEmbed,
				Message: embedFailureMessage(err),
			}
			continue
		}
		results[i] = o.embeddingFor(units[i], vecs[0])
	}
}

func (o *Orchestrator) embeddingFor(unit domain.ExtractionUnit, vector []float32) *domain.Embedding {
	return &domain.Embedding{
		DocumentID: unit.DocumentID,
		UnitIndex:  unit.Index,
		Modality:   unit.Modality,
		Vector:     vector,
	}
}

// commit archives the original into the library and performs the
// dual-store commit: vector upsert first, then the metadata transaction
// that flips status to Indexed. A crash between the two leaves status at
// Embedded, which the next run retries.
func (o *Orchestrator) commit(ctx context.Context, doc *domain.Document, entry *domain.StagingEntry, units []domain.ExtractionUnit, embeddings []domain.Embedding) error {
	libraryName, err := o.archiveOriginal(entry)
	if err != nil {
		return fmt.Errorf("archiving original: %w", err)
	}
	doc.LibraryPath = libraryName
	for i := range units {
		if units[i].Modality == domain.ModalityImage && !units[i].Failed {
			units[i].ImageRef = libraryName
		}
	}

	o.commitGate.RLock()
	defer o.commitGate.RUnlock()

	if err := o.cfg.Vectors.Upsert(ctx, embeddings); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}

	committed := *doc
	committed.Status = domain.StatusIndexed
	if err := o.cfg.Meta.Commit(ctx, &committed, units); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	doc.Status = domain.StatusIndexed
	return nil
}

// archiveOriginal copies the staged bytes into the library tree and
// returns the library-relative name.
func (o *Orchestrator) archiveOriginal(entry *domain.StagingEntry) (string, error) {
	if o.cfg.LibraryDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(o.cfg.LibraryDir, 0o700); err != nil {
		return "", err
	}

	name := filepath.Base(entry.Path)
	dest := filepath.Join(o.cfg.LibraryDir, name)
	if _, err := os.Stat(dest); err == nil {
		return name, nil // resume: already archived
	}

	src, err := os.Open(entry.Path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	return name, out.Close()
}

// markFailed transitions the document to the absorbing Failed status.
func (o *Orchestrator) markFailed(ctx context.Context, doc *domain.Document, unitErr domain.UnitError) {
	doc.Errors = append(doc.Errors, unitErr)
	doc.Status = domain.StatusFailed
	if err := o.cfg.Meta.UpdateStatus(ctx, doc.ID, domain.StatusFailed, doc.Errors); err != nil {
		logger.Error("Recording failure for %s: %v", doc.ID, err)
	}
}

func (o *Orchestrator) failReport(report domain.ProcessReport, stage domain.ProcessingStage, err error) domain.ProcessReport {
	report.Outcome = domain.OutcomeFailed
	report.Errors = append(report.Errors, domain.UnitError{UnitIndex: -1, Stage: stage, Message: err.Error()})
	return report
}

// CleanStaging removes staging leftovers from failed runs.
func (o *Orchestrator) CleanStaging(_ context.Context) error {
	return o.cfg.Stager.CleanAll()
}

// acquire takes the per-digest lock without blocking. A held lock means
// another call is processing the same content right now.
func (o *Orchestrator) acquire(digest string) (func(), error) {
	o.locksMu.Lock()
	l, ok := o.locks[digest]
	if !ok {
		l = &digestLock{}
		o.locks[digest] = l
	}
	l.refs++
	o.locksMu.Unlock()

	if !l.mu.TryLock() {
		o.release(digest, l)
		return nil, domain.ErrInProgress
	}

	return func() {
		l.mu.Unlock()
		o.release(digest, l)
	}, nil
}

// release drops a reference, removing the registry entry with the last one.
func (o *Orchestrator) release(digest string, l *digestLock) {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(o.locks, digest)
	}
}

// embedFailureMessage normalises nil errors from misbehaving embedders.
func embedFailureMessage(err error) string {
	if err != nil {
		return err.Error()
	}
	return "embedder returned wrong vector count"
}

// chunk splits indices into fixed-size batches.
func chunk(indices []int, size int) [][]int {
	var batches [][]int
	for len(indices) > size {
		batches = append(batches, indices[:size])
		indices = indices[size:]
	}
	if len(indices) > 0 {
		batches = append(batches, indices)
	}
	return batches
}
