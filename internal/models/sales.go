package models

type TopEvent struct {
	EventID          int64   `json:"eventId"`
	Title            string  `json:"title"`
	TotalTicketsSold int     `json:"totalTicketsSold"`
	TotalRevenue     float64 `json:"totalRevenue"`
}

type SalesReport struct {
	TotalRevenue  float64    `json:"totalRevenue"`
	TotalBookings int        `json:"totalBookings"`
	TopEvents     []TopEvent `json:"topEvents"`
}

type ReportFormat string

const (
	ReportCSV ReportFormat = "csv"
	ReportPDF ReportFormat = "pdf"
)

func (f ReportFormat) Valid() bool {
	return f == ReportCSV || f == ReportPDF
}
