package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the audit service settings.
type Config struct {
	// ExportDir is where monthly workbooks land.
	ExportDir string

	// ExportOnStart runs an export immediately when the service starts.
	ExportOnStart bool

	// RetentionDays prunes overrides expired for longer than this after
	// each export. Zero keeps the override history forever, which is
	// the default: the rows are the audit trail.
	RetentionDays int
}

// Service writes a workbook of every status-engine table on the 1st of
// each month.
type Service struct {
	config   Config
	exporter TableExporter
	writer   func() ExcelWriter
	cleaner  Cleaner
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config Config, exporter TableExporter, writerFactory func() ExcelWriter, cleaner Cleaner, logger zerolog.Logger) *Service {
	if config.ExportDir == "" {
		config.ExportDir = "reports"
	}
	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		cleaner:  cleaner,
		logger:   logger.With().Str("component", "audit").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.runOnce()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().
		Str("export_dir", s.config.ExportDir).
		Int("retention_days", s.config.RetentionDays).
		Msg("audit service started")
}

// Stop waits for the scheduler goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(time.Now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.runOnce()
			nextRun = nextFirstOfMonth(time.Now())
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

func (s *Service) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.exportTo(ctx, PreviousMonthFilename(time.Now())); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}
	if err := s.cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
	}
}

// ExportNow writes a workbook for the current month and returns its
// path. Used by manual runs and tests.
func (s *Service) ExportNow(ctx context.Context) (string, error) {
	return s.exportTo(ctx, ReportFilename(time.Now()))
}

func (s *Service) exportTo(ctx context.Context, filename string) (string, error) {
	if s.exporter == nil || s.writer == nil {
		return "", fmt.Errorf("exporter or writer not configured")
	}

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return "", fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		s.logger.Info().Msg("no tables to export")
		return "", nil
	}

	excel := s.writer()
	for _, tableName := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, tableName)
		if err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("read table")
			continue
		}
		if err := excel.AddSheet(tableName); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("add sheet")
			continue
		}
		if err := excel.WriteHeader(columns); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("write header")
			continue
		}
		for _, row := range data {
			rowData := make([]interface{}, len(columns))
			for i, col := range columns {
				rowData[i] = row[col]
			}
			if err := excel.WriteRow(rowData); err != nil {
				s.logger.Error().Err(err).Str("table", tableName).Msg("write row")
			}
		}
		s.logger.Debug().Str("table", tableName).Int("rows", len(data)).Msg("table exported")
	}

	if err := os.MkdirAll(s.config.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.config.ExportDir, filename)
	if err := excel.SaveToFile(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("audit report written")
	return path, nil
}

func (s *Service) cleanup(ctx context.Context) error {
	if s.cleaner == nil || s.config.RetentionDays <= 0 {
		return nil
	}

	retention := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	deleted, err := s.cleaner.PurgeExpiredOverrides(ctx, retention)
	if err != nil {
		return fmt.Errorf("purge expired overrides: %w", err)
	}

	s.logger.Info().
		Int64("deleted", deleted).
		Int("retention_days", s.config.RetentionDays).
		Msg("expired overrides purged")
	return nil
}
