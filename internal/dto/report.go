package dto

// DailyReportQuery binds GET /reports/daily.
type DailyReportQuery struct {
	Date string `form:"date"`
}

// MonthlyReportQuery binds GET /reports/monthly.
type MonthlyReportQuery struct {
	Year  int `form:"year"`
	Month int `form:"month"`
}

// RevenueReportQuery binds GET /reports/revenue.
type RevenueReportQuery struct {
	Period int `form:"period"`
}

// ExportReportQuery binds GET /reports/export/:type.
type ExportReportQuery struct {
	Format string `form:"format"`
	Date   string `form:"date"`
	Year   int    `form:"year"`
	Month  int    `form:"month"`
}
