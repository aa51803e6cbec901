package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/print-hub-api/internal/models"
)

const rangeFilter = `created_at >= $1 AND created_at < $2`

// ReportRepository runs read-only aggregations over orders.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Summary aggregates order counts, pages and revenue for the range.
func (r *ReportRepository) Summary(ctx context.Context, rng models.ReportRange) (models.ReportSummary, error) {
	const query = `SELECT
  COUNT(*) AS total_orders,
  COALESCE(SUM(total_pages), 0) AS total_pages,
  COALESCE(SUM(color_pages), 0) AS color_pages,
  COALESCE(SUM(bw_pages), 0) AS bw_pages,
  COALESCE(SUM(price), 0) AS total_revenue,
  COUNT(*) FILTER (WHERE status = 'completed') AS completed_orders,
  COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
  COUNT(*) FILTER (WHERE status = 'processing') AS processing_orders
FROM orders WHERE ` + rangeFilter
	var summary models.ReportSummary
	if err := r.db.GetContext(ctx, &summary, query, rng.From, rng.To); err != nil {
		return models.ReportSummary{}, fmt.Errorf("report summary: %w", err)
	}
	return summary, nil
}

// Hourly groups orders in the range by UTC hour of creation.
func (r *ReportRepository) Hourly(ctx context.Context, rng models.ReportRange) ([]models.HourlyBucket, error) {
	const query = `SELECT
  EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int AS hour,
  COUNT(*) AS orders,
  COALESCE(SUM(total_pages), 0) AS pages,
  COALESCE(SUM(price), 0) AS revenue
FROM orders WHERE ` + rangeFilter + `
GROUP BY 1 ORDER BY 1`
	var buckets []models.HourlyBucket
	if err := r.db.SelectContext(ctx, &buckets, query, rng.From, rng.To); err != nil {
		return nil, fmt.Errorf("report hourly breakdown: %w", err)
	}
	return buckets, nil
}

// Daily groups orders in the range by UTC calendar day, oldest first.
func (r *ReportRepository) Daily(ctx context.Context, rng models.ReportRange) ([]models.DailyBucket, error) {
	const query = `SELECT
  TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date,
  COUNT(*) AS orders,
  COALESCE(SUM(total_pages), 0) AS pages,
  COALESCE(SUM(price), 0) AS revenue
FROM orders WHERE ` + rangeFilter + `
GROUP BY 1 ORDER BY 1`
	var buckets []models.DailyBucket
	if err := r.db.SelectContext(ctx, &buckets, query, rng.From, rng.To); err != nil {
		return nil, fmt.Errorf("report daily breakdown: %w", err)
	}
	return buckets, nil
}

// ExportRows returns the orders of a range for CSV/PDF export, newest first.
func (r *ReportRepository) ExportRows(ctx context.Context, rng models.ReportRange) ([]models.Order, error) {
	const query = `SELECT id, token, roll_number, total_pages, color_pages, bw_pages, price, status, payment_status, created_at
FROM orders WHERE ` + rangeFilter + ` ORDER BY created_at DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, rng.From, rng.To); err != nil {
		return nil, fmt.Errorf("report export rows: %w", err)
	}
	return orders, nil
}

// PaymentStats counts orders by payment status since the given time. Revenue only includes paid orders.
func (r *ReportRepository) PaymentStats(ctx context.Context, since time.Time) (models.PaymentStats, error) {
	const query = `SELECT
  COUNT(*) AS total_orders,
  COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid_orders,
  COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending_orders,
  COUNT(*) FILTER (WHERE payment_status = 'failed') AS failed_orders,
  COALESCE(SUM(price) FILTER (WHERE payment_status = 'paid'), 0) AS total_revenue
FROM orders WHERE created_at >= $1`
	var stats models.PaymentStats
	if err := r.db.GetContext(ctx, &stats, query, since); err != nil {
		return models.PaymentStats{}, fmt.Errorf("payment stats: %w", err)
	}
	stats.Since = since
	return stats, nil
}
