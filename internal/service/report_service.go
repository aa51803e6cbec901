package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/export"
)

const (
	reportCachePattern   = "reports:*"
	defaultRevenuePeriod = 30
	maxRevenuePeriod     = 365
	reportDateLayout     = "2006-01-02"
)

var exportHeaders = []string{"Token", "Roll Number", "Total Pages", "Color Pages", "B&W Pages", "Price", "Status", "Created At"}

type reportRepository interface {
	Summary(ctx context.Context, rng models.ReportRange) (models.ReportSummary, error)
	Hourly(ctx context.Context, rng models.ReportRange) ([]models.HourlyBucket, error)
	Daily(ctx context.Context, rng models.ReportRange) ([]models.DailyBucket, error)
	ExportRows(ctx context.Context, rng models.ReportRange) ([]models.Order, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ReportService builds read-only sales reports. JSON reports are cached until an order changes.
type ReportService struct {
	repo     reportRepository
	cache    *CacheService
	csv      datasetRenderer
	pdf      datasetRenderer
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &ReportService{
		repo:     repo,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Daily reports a single UTC day. An empty date means today.
func (s *ReportService) Daily(ctx context.Context, date string) (*models.DailyReport, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}
	key := "reports:daily:" + day.Format(reportDateLayout)
	report, err := cached(ctx, s.cache, key, s.cacheTTL, func() (*models.DailyReport, error) {
		rng := models.ReportRange{From: day, To: day.AddDate(0, 0, 1)}
		summary, err := s.repo.Summary(ctx, rng)
		if err != nil {
			return nil, err
		}
		hourly, err := s.repo.Hourly(ctx, rng)
		if err != nil {
			return nil, err
		}
		if hourly == nil {
			hourly = []models.HourlyBucket{}
		}
		summary.AverageOrderValue = averageOrderValue(summary.TotalRevenue, summary.TotalOrders)
		return &models.DailyReport{Date: day.Format(reportDateLayout), Summary: summary, Hourly: hourly}, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build daily report")
	}
	return report, nil
}

// Monthly reports a UTC calendar month. Zero year or month means the current one.
func (s *ReportService) Monthly(ctx context.Context, year, month int) (*models.MonthlyReport, error) {
	start, err := s.monthStart(year, month)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("reports:monthly:%s", start.Format("2006-01"))
	report, err := cached(ctx, s.cache, key, s.cacheTTL, func() (*models.MonthlyReport, error) {
		rng := models.ReportRange{From: start, To: start.AddDate(0, 1, 0)}
		summary, err := s.repo.Summary(ctx, rng)
		if err != nil {
			return nil, err
		}
		daily, err := s.repo.Daily(ctx, rng)
		if err != nil {
			return nil, err
		}
		if daily == nil {
			daily = []models.DailyBucket{}
		}
		summary.AverageOrderValue = averageOrderValue(summary.TotalRevenue, summary.TotalOrders)
		return &models.MonthlyReport{Year: start.Year(), Month: int(start.Month()), Summary: summary, Daily: daily}, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build monthly report")
	}
	return report, nil
}

// Revenue reports per-day revenue for the trailing period, newest day first.
func (s *ReportService) Revenue(ctx context.Context, periodDays int) (*models.RevenueReport, error) {
	if periodDays == 0 {
		periodDays = defaultRevenuePeriod
	}
	if periodDays < 1 || periodDays > maxRevenuePeriod {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period must be between 1 and %d days", maxRevenuePeriod))
	}
	today := s.today()
	rng := models.ReportRange{From: today.AddDate(0, 0, -periodDays), To: today.AddDate(0, 0, 1)}
	key := fmt.Sprintf("reports:revenue:%d:%s", periodDays, today.Format(reportDateLayout))

	report, err := cached(ctx, s.cache, key, s.cacheTTL, func() (*models.RevenueReport, error) {
		daily, err := s.repo.Daily(ctx, rng)
		if err != nil {
			return nil, err
		}
		out := &models.RevenueReport{PeriodDays: periodDays, From: rng.From, To: rng.To, TotalRevenue: decimal.Zero, Daily: make([]models.DailyBucket, 0, len(daily))}
		for i := len(daily) - 1; i >= 0; i-- {
			out.Daily = append(out.Daily, daily[i])
			out.TotalOrders += daily[i].Orders
			out.TotalRevenue = out.TotalRevenue.Add(daily[i].Revenue)
		}
		out.AverageOrderValue = averageOrderValue(out.TotalRevenue, out.TotalOrders)
		return out, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build revenue report")
	}
	return report, nil
}

// Export renders the orders of a day or month as CSV or PDF.
func (s *ReportService) Export(ctx context.Context, reportType models.ReportType, format models.ReportFormat, date string, year, month int) (*models.ExportFile, error) {
	if format == "" {
		format = models.ReportFormatCSV
	}
	var renderer datasetRenderer
	var contentType string
	switch format {
	case models.ReportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case models.ReportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	var rng models.ReportRange
	var title string
	switch reportType {
	case models.ReportTypeDaily:
		day, err := s.parseDay(date)
		if err != nil {
			return nil, err
		}
		rng = models.ReportRange{From: day, To: day.AddDate(0, 0, 1)}
		title = "Daily Report " + day.Format(reportDateLayout)
	case models.ReportTypeMonthly:
		start, err := s.monthStart(year, month)
		if err != nil {
			return nil, err
		}
		rng = models.ReportRange{From: start, To: start.AddDate(0, 1, 0)}
		title = "Monthly Report " + start.Format("2006-01")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid report type")
	}

	orders, err := s.repo.ExportRows(ctx, rng)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report rows")
	}

	data, err := renderer.Render(exportDataset(title, orders))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.logger.Info("report exported", zap.String("type", string(reportType)), zap.String("format", string(format)), zap.Int("rows", len(orders)))
	return &models.ExportFile{
		Filename:    fmt.Sprintf("%s_report_%s.%s", reportType, s.today().Format(reportDateLayout), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func exportDataset(title string, orders []models.Order) export.Dataset {
	rows := make([][]string, 0, len(orders))
	revenue := decimal.Zero
	for _, o := range orders {
		rows = append(rows, []string{
			o.Token,
			o.RollNumber,
			strconv.Itoa(o.TotalPages),
			strconv.Itoa(o.ColorPages),
			strconv.Itoa(o.BWPages),
			o.Price.StringFixed(2),
			string(o.Status),
			o.CreatedAt.UTC().Format(time.RFC3339),
		})
		revenue = revenue.Add(o.Price)
	}
	return export.Dataset{
		Title:   title,
		Headers: exportHeaders,
		Rows:    rows,
		Summary: []string{
			fmt.Sprintf("Total Orders: %d", len(orders)),
			fmt.Sprintf("Total Revenue: %s", revenue.StringFixed(2)),
		},
	}
}

func averageOrderValue(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders <= 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(orders))).Round(2)
}

func (s *ReportService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *ReportService) parseDay(date string) (time.Time, error) {
	if date == "" {
		return s.today(), nil
	}
	day, err := time.ParseInLocation(reportDateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func (s *ReportService) monthStart(year, month int) (time.Time, error) {
	today := s.today()
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = int(today.Month())
	}
	if month < 1 || month > 12 {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "year is out of range")
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}
