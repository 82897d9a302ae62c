package kpi

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type PerformanceReport struct {
	UserID      string
	UserName    string
	GeneratedAt time.Time
	Periods     []EmployeePeriodScore
}

func (s *Service) PerformanceReport(ctx context.Context, actor Actor, userID string) (PerformanceReport, error) {
	if err := s.requireUserAccess(ctx, actor, userID); err != nil {
		return PerformanceReport{}, err
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID, UserID: userID})
	if err != nil {
		return PerformanceReport{}, err
	}
	report := PerformanceReport{
		UserID:      userID,
		UserName:    userID,
		GeneratedAt: s.now().UTC(),
		Periods:     buildEmployeePerformance(rows),
	}
	if len(rows) > 0 {
		report.UserName = rows[0].UserName
	}
	return report, nil
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *score)
}

// WritePDF renders the report as an A4 document.
func (r PerformanceReport) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Performance report", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Performance report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", r.UserName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	if len(r.Periods) == 0 {
		pdf.Cell(0, 8, "No assessments recorded.")
		return pdf.Output(w)
	}

	for _, period := range r.Periods {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, fmt.Sprintf("%s (%s to %s)", period.PeriodLabel,
			period.StartDate.Format("2006-01-02"), period.DueDate.Format("2006-01-02")))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 7, fmt.Sprintf("Final score: %s   Scored: %d of %d", formatScore(period.FinalScore), period.Scored, period.Total))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(90, 7, "Category", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, "Scored", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, "Total", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, "Score", "1", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, category := range period.Categories {
			pdf.CellFormat(90, 7, category.Category, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", category.Scored), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", category.Total), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 7, formatScore(category.FinalScore), "1", 1, "C", false, 0, "")
		}
		pdf.Ln(6)
	}
	return pdf.Output(w)
}
