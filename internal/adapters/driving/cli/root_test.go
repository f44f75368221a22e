package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// mockProcessor implements driving.Processor for testing.
type mockProcessor struct {
	ProcessFunc func(ctx context.Context, source string) ([]domain.ProcessReport, error)
	CleanFunc   func(ctx context.Context) error

	processed []string
}

func (m *mockProcessor) Process(ctx context.Context, source string) ([]domain.ProcessReport, error) {
	m.processed = append(m.processed, source)
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, source)
	}
	return []domain.ProcessReport{{Source: source, Outcome: domain.OutcomeIndexed, UnitsTotal: 1, UnitsIndexed: 1}}, nil
}

func (m *mockProcessor) CleanStaging(ctx context.Context) error {
	if m.CleanFunc != nil {
		return m.CleanFunc(ctx)
	}
	return nil
}

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	QueryTextFunc  func(ctx context.Context, query string, opts domain.QueryOptions) ([]domain.QueryResult, error)
	QueryImageFunc func(ctx context.Context, image []byte, opts domain.QueryOptions) ([]domain.QueryResult, error)
}

func (m *mockQueryService) QueryText(ctx context.Context, query string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	if m.QueryTextFunc != nil {
		return m.QueryTextFunc(ctx, query, opts)
	}
	return nil, nil
}

func (m *mockQueryService) QueryImage(ctx context.Context, image []byte, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	if m.QueryImageFunc != nil {
		return m.QueryImageFunc(ctx, image, opts)
	}
	return nil, nil
}

// mockBackupService implements driving.BackupService for testing.
type mockBackupService struct {
	BackupFunc  func(ctx context.Context) (*domain.Snapshot, error)
	RestoreFunc func(ctx context.Context, path string) error
	ListFunc    func(ctx context.Context) ([]domain.Snapshot, error)
}

func (m *mockBackupService) Backup(ctx context.Context) (*domain.Snapshot, error) {
	if m.BackupFunc != nil {
		return m.BackupFunc(ctx)
	}
	return &domain.Snapshot{Name: "backup_test", Path: "/tmp/backup_test", Complete: true}, nil
}

func (m *mockBackupService) Restore(ctx context.Context, path string) error {
	if m.RestoreFunc != nil {
		return m.RestoreFunc(ctx, path)
	}
	return nil
}

func (m *mockBackupService) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

// testServices holds the mocks installed for one test.
type testServices struct {
	processor *mockProcessor
	query     *mockQueryService
	backup    *mockBackupService
}

// setupTestServices installs mock services and resets all command state
// when the test finishes.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		processor: &mockProcessor{},
		query:     &mockQueryService{},
		backup:    &mockBackupService{},
	}
	SetServices(&Services{
		Processor: ts.processor,
		Query:     ts.query,
		Backup:    ts.backup,
	})

	t.Cleanup(func() {
		services = nil
		verbose = false
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)

		processURLFile = ""
		processKeep = false
		processWorkers = 0
		processClean = false
		queryImagePath = ""
		queryLimit = 10
		queryModality = ""
		queryJSON = false
		queryInteractive = false
		backupRestorePath = ""
		backupList = false
	})
	return ts
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}
