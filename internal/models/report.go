package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportType enumerates exportable report periods.
type ReportType string

const (
	ReportTypeDaily   ReportType = "daily"
	ReportTypeMonthly ReportType = "monthly"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportSummary aggregates orders over a period.
type ReportSummary struct {
	TotalOrders       int             `db:"total_orders" json:"totalOrders"`
	TotalPages        int             `db:"total_pages" json:"totalPages"`
	ColorPages        int             `db:"color_pages" json:"colorPages"`
	BWPages           int             `db:"bw_pages" json:"bwPages"`
	TotalRevenue      decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	CompletedOrders   int             `db:"completed_orders" json:"completedOrders"`
	PendingOrders     int             `db:"pending_orders" json:"pendingOrders"`
	ProcessingOrders  int             `db:"processing_orders" json:"processingOrders"`
	AverageOrderValue decimal.Decimal `db:"-" json:"averageOrderValue"`
}

// HourlyBucket is one hour of a daily report.
type HourlyBucket struct {
	Hour    int             `db:"hour" json:"hour"`
	Orders  int             `db:"orders" json:"orders"`
	Pages   int             `db:"pages" json:"pages"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

// DailyBucket is one day of a monthly or revenue report.
type DailyBucket struct {
	Date    string          `db:"date" json:"date"`
	Orders  int             `db:"orders" json:"orders"`
	Pages   int             `db:"pages" json:"pages"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

// DailyReport covers a single calendar day.
type DailyReport struct {
	Date    string         `json:"date"`
	Summary ReportSummary  `json:"summary"`
	Hourly  []HourlyBucket `json:"hourlyBreakdown"`
}

// MonthlyReport covers a calendar month.
type MonthlyReport struct {
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	Summary ReportSummary `json:"summary"`
	Daily   []DailyBucket `json:"dailyBreakdown"`
}

// RevenueReport covers the trailing PeriodDays days.
type RevenueReport struct {
	PeriodDays        int             `json:"periodDays"`
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalOrders       int             `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	Daily             []DailyBucket   `json:"dailyRevenue"`
}

// ReportRange is a half-open [From, To) time window.
type ReportRange struct {
	From time.Time
	To   time.Time
}

// ExportFile is a rendered report ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
