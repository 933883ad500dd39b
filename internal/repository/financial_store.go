package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/internal/domain/models"
	pkgch "github.com/finbridge/finbridge/pkg/clickhouse"
	applogger "github.com/finbridge/finbridge/pkg/logger"
)

// ClickHouseFinancialStore persists normalized financial metrics in
// ClickHouse. Values are written as Decimal(38, 6) so downstream math
// never accumulates float drift.
type ClickHouseFinancialStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseFinancialStore creates the store over an existing
// ClickHouse client.
func NewClickHouseFinancialStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseFinancialStore {
	if table == "" {
		table = "financial_metrics"
	}
	return &ClickHouseFinancialStore{db: ch.DB(), table: table, l: l}
}

// Init ensures the metrics table exists. ReplacingMergeTree keyed by
// (cik, concept, fiscal period) makes re-ingestion idempotent.
func (s *ClickHouseFinancialStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            cik           String,
            ticker        String,
            company       String,
            concept       String,
            value         Decimal(38, 6),
            unit          String,
            period_start  Nullable(DateTime),
            period_end    DateTime,
            instant       UInt8,
            fiscal_year   Int32,
            fiscal_period String,
            accession_no  String,
            form          String,
            filed_at      Nullable(DateTime),
            source        String,
            ingested_at   DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (cik, concept, fiscal_year, fiscal_period)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("init financial store: %w", err)
	}
	return nil
}

// StoreFinancialData writes every metric of one fetch in a single
// batch insert.
func (s *ClickHouseFinancialStore) StoreFinancialData(ctx context.Context, data *models.FinancialData) error {
	if data == nil || len(data.Metrics) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (cik, ticker, company, concept, value, unit, period_start, period_end, instant, fiscal_year, fiscal_period, accession_no, form, filed_at, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table,
	)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, m := range data.Metrics {
		var periodStart, filedAt interface{}
		if m.PeriodStart != nil {
			periodStart = *m.PeriodStart
		}
		if m.FiledAt != nil {
			filedAt = *m.FiledAt
		}
		instant := uint8(0)
		if m.Instant {
			instant = 1
		}
		if _, err := stmt.ExecContext(ctx,
			data.Company.CIK,
			data.Company.Ticker,
			data.Company.Name,
			m.Concept,
			decimal.NewFromFloat(m.Value),
			m.Unit,
			periodStart,
			m.PeriodEnd,
			instant,
			int32(m.FiscalYear),
			m.FiscalPeriod,
			m.AccessionNo,
			m.Form,
			filedAt,
			data.Source,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append metric: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	if s.l != nil {
		s.l.Debug("stored financial data",
			applogger.String("cik", data.Company.CIK),
			applogger.String("source", data.Source),
			applogger.Int("metrics", len(data.Metrics)),
			applogger.Duration("took", time.Since(start)),
		)
	}
	return nil
}

// QueryMetrics reads metrics back for a company, newest first.
func (s *ClickHouseFinancialStore) QueryMetrics(ctx context.Context, cik string, concepts []string, from, to time.Time, limit int) ([]models.FinancialMetric, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `
        SELECT concept, value, unit, period_start, period_end, instant,
               fiscal_year, fiscal_period, accession_no, form, filed_at
        FROM %s FINAL
        WHERE cik = ?`, s.table)
	args := []interface{}{cik}

	if len(concepts) > 0 {
		b.WriteString(" AND concept IN (")
		for i, c := range concepts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, c)
		}
		b.WriteString(")")
	}
	if !from.IsZero() {
		b.WriteString(" AND period_end >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		b.WriteString(" AND period_end <= ?")
		args = append(args, to)
	}
	b.WriteString(" ORDER BY period_end DESC, concept ASC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []models.FinancialMetric
	for rows.Next() {
		var (
			m           models.FinancialMetric
			value       decimal.Decimal
			periodStart sql.NullTime
			filedAt     sql.NullTime
			instant     uint8
			fiscalYear  int32
		)
		if err := rows.Scan(&m.Concept, &value, &m.Unit, &periodStart, &m.PeriodEnd, &instant,
			&fiscalYear, &m.FiscalPeriod, &m.AccessionNo, &m.Form, &filedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Value, _ = value.Float64()
		m.Instant = instant == 1
		m.FiscalYear = int(fiscalYear)
		if periodStart.Valid {
			t := periodStart.Time
			m.PeriodStart = &t
		}
		if filedAt.Valid {
			t := filedAt.Time
			m.FiledAt = &t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Health checks ClickHouse reachability.
func (s *ClickHouseFinancialStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the shared client owns the pool.
func (s *ClickHouseFinancialStore) Close() error { return nil }
