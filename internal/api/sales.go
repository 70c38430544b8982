package api

import (
	"context"
	"fmt"
	"io"

	"ticketkenya/internal/models"
)

// DownloadReport streams sales/report/{csv|pdf} into w.
func (s *SalesService) DownloadReport(ctx context.Context, format models.ReportFormat, w io.Writer) (int64, error) {
	if !format.Valid() {
		return 0, fmt.Errorf("unsupported report format %q", format)
	}
	return s.c.Download(ctx, "sales/report/"+string(format), nil, w)
}
