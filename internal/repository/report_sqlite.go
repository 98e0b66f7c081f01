package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/labpanel-mcp-server/internal/domain"
)

// SQLiteReportStore keeps analyzed reports in a local SQLite file.
type SQLiteReportStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteReportStore opens (creating if needed) the report database at dbPath.
func NewSQLiteReportStore(dbPath string, logger *logrus.Logger) (*SQLiteReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteReportSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteReportStore{db: db, log: logger}, nil
}

const sqliteReportSchema = `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		extracted_text TEXT NOT NULL DEFAULT '',
		report_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		patient_name TEXT NOT NULL DEFAULT '',
		overall_status TEXT NOT NULL DEFAULT 'normal',
		severity TEXT NOT NULL DEFAULT 'none',
		patient_info TEXT NOT NULL DEFAULT '{}',
		panel TEXT NOT NULL DEFAULT '{}',
		recommendations TEXT,
		summary TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_report_type ON reports(report_type);
	CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
`

// SaveReport inserts a report, replacing an existing one with the same id.
func (s *SQLiteReportStore) SaveReport(ctx context.Context, report *domain.StoredReport) error {
	if err := validateReport(report); err != nil {
		return err
	}
	row, err := encodeReport(report)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	var recommendations interface{}
	if row.Recommendations != nil {
		recommendations = string(row.Recommendations)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, file_name, mime_type, extracted_text, report_type, status,
			patient_name, overall_status, severity,
			patient_info, panel, recommendations, summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name = excluded.file_name,
			mime_type = excluded.mime_type,
			extracted_text = excluded.extracted_text,
			report_type = excluded.report_type,
			status = excluded.status,
			patient_name = excluded.patient_name,
			overall_status = excluded.overall_status,
			severity = excluded.severity,
			patient_info = excluded.patient_info,
			panel = excluded.panel,
			recommendations = excluded.recommendations,
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`,
		report.ID, report.FileName, report.MimeType, report.ExtractedText,
		string(report.ReportType), string(report.Status),
		row.PatientName, row.OverallStatus, row.Severity,
		string(row.PatientInfo), string(row.Panel), recommendations, string(row.Summary),
		report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"report_type": report.ReportType,
	}).Debug("Report saved")
	return nil
}

// GetReport retrieves a report by its ID
func (s *SQLiteReportStore) GetReport(ctx context.Context, id string) (*domain.StoredReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanSQLiteReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report by ID: %w", err)
	}
	return report, nil
}

// ListReports returns reports newest first.
func (s *SQLiteReportStore) ListReports(ctx context.Context, filter domain.ReportFilter) ([]*domain.StoredReport, error) {
	filter = normalizeFilter(filter)

	var (
		where []string
		args  []interface{}
	)
	if filter.ReportType != "" {
		where = append(where, "report_type = ?")
		args = append(args, string(filter.ReportType))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.StoredReport, 0)
	for rows.Next() {
		report, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// UpdateReportStatus changes the review state of a report.
func (s *SQLiteReportStore) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidReportStatus, status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	return requireAffected(result)
}

// DeleteReport removes a report.
func (s *SQLiteReportStore) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return requireAffected(result)
}

// Close closes the database.
func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report not found: %w", domain.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteReport(s rowScanner) (*domain.StoredReport, error) {
	var (
		report                      domain.StoredReport
		reportType, status          string
		cols                        reportRow
		patientInfo, panel, summary string
		recommendations             sql.NullString
	)
	err := s.Scan(
		&report.ID, &report.FileName, &report.MimeType, &report.ExtractedText,
		&reportType, &status,
		&cols.PatientName, &cols.OverallStatus, &cols.Severity,
		&patientInfo, &panel, &recommendations, &summary,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.ReportType = domain.ReportType(reportType)
	report.Status = domain.ReportStatus(status)
	cols.PatientInfo = []byte(patientInfo)
	cols.Panel = []byte(panel)
	cols.Summary = []byte(summary)
	if recommendations.Valid {
		cols.Recommendations = []byte(recommendations.String)
	}
	if err := decodeReport(&report, &cols); err != nil {
		return nil, err
	}
	return &report, nil
}
