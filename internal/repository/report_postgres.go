package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

const reportColumns = `id, file_name, mime_type, extracted_text, report_type, status,
	patient_name, overall_status, severity,
	patient_info, panel, recommendations, summary, created_at, updated_at`

// PostgresReportStore handles analyzed report persistence in PostgreSQL.
type PostgresReportStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresReportStore creates a new report repository
func NewPostgresReportStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresReportStore {
	return &PostgresReportStore{
		db:  db,
		log: logger,
	}
}

// SaveReport inserts a report, replacing an existing one with the same id.
func (r *PostgresReportStore) SaveReport(ctx context.Context, report *domain.StoredReport) error {
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

	query := `
		INSERT INTO reports (
			id, file_name, mime_type, extracted_text, report_type, status,
			patient_name, overall_status, severity,
			patient_info, panel, recommendations, summary, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			mime_type = EXCLUDED.mime_type,
			extracted_text = EXCLUDED.extracted_text,
			report_type = EXCLUDED.report_type,
			status = EXCLUDED.status,
			patient_name = EXCLUDED.patient_name,
			overall_status = EXCLUDED.overall_status,
			severity = EXCLUDED.severity,
			patient_info = EXCLUDED.patient_info,
			panel = EXCLUDED.panel,
			recommendations = EXCLUDED.recommendations,
			summary = EXCLUDED.summary,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		report.ID,
		report.FileName,
		report.MimeType,
		report.ExtractedText,
		string(report.ReportType),
		string(report.Status),
		row.PatientName,
		row.OverallStatus,
		row.Severity,
		row.PatientInfo,
		row.Panel,
		row.Recommendations,
		row.Summary,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"report_id": report.ID,
			"error":     err,
		}).Error("Failed to save report")
		return fmt.Errorf("saving report: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"report_type": report.ReportType,
		"status":      report.Status,
	}).Info("Report saved")

	return nil
}

// GetReport retrieves a report by its ID
func (r *PostgresReportStore) GetReport(ctx context.Context, id string) (*domain.StoredReport, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id::text = $1`

	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting report by ID: %w", err)
	}
	return report, nil
}

// ListReports returns reports newest first.
func (r *PostgresReportStore) ListReports(ctx context.Context, filter domain.ReportFilter) ([]*domain.StoredReport, error) {
	filter = normalizeFilter(filter)

	var (
		where []string
		args  []interface{}
	)
	if filter.ReportType != "" {
		args = append(args, string(filter.ReportType))
		where = append(where, "report_type = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.StoredReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating report rows: %w", err)
	}
	return reports, nil
}

// UpdateReportStatus changes the review state of a report.
func (r *PostgresReportStore) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidReportStatus, status)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE reports SET status = $1, updated_at = $2 WHERE id::text = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"report_id": id,
		"status":    status,
	}).Info("Report status updated")
	return nil
}

// DeleteReport removes a report.
func (r *PostgresReportStore) DeleteReport(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report not found: %w", domain.ErrNotFound)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *PostgresReportStore) Close() error {
	return nil
}

func scanReport(row pgx.Row) (*domain.StoredReport, error) {
	var (
		report     domain.StoredReport
		reportType string
		status     string
		cols       reportRow
	)
	err := row.Scan(
		&report.ID,
		&report.FileName,
		&report.MimeType,
		&report.ExtractedText,
		&reportType,
		&status,
		&cols.PatientName,
		&cols.OverallStatus,
		&cols.Severity,
		&cols.PatientInfo,
		&cols.Panel,
		&cols.Recommendations,
		&cols.Summary,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.ReportType = domain.ReportType(reportType)
	report.Status = domain.ReportStatus(status)
	if err := decodeReport(&report, &cols); err != nil {
		return nil, err
	}
	return &report, nil
}
