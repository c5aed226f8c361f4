package reports

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"backoffice/internal/domain/settlement"
)

const exportDateLayout = "2006-01-02"

func Export(w io.Writer, format string, set ReportSet) error {
	switch format {
	case FormatPDF:
		return WritePDF(w, set)
	case FormatXLSX:
		return WriteXLSX(w, set)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

func Filename(set ReportSet, format string) string {
	shop := set.ShopID
	if shop == "" {
		shop = salesShopKey
	}
	return fmt.Sprintf("%s-%s-%04d-%02d.%s", set.Pipeline, shop, set.Year, set.Month, format)
}

func title(set ReportSet) string {
	name := "Sales payroll"
	if set.Pipeline == settlement.PipelineCafe {
		name = "Cafe cash report"
	}
	return fmt.Sprintf("%s %04d-%02d", name, set.Year, set.Month)
}

// WritePDF renders one page per period: the day table followed by the
// employee summary.
func WritePDF(w io.Writer, set ReportSet) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	for _, report := range set.Periods {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 10, title(set))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", report.Period.Start.Format(exportDateLayout), report.Period.End.Format(exportDateLayout)))
		pdf.Ln(10)

		writePDFRow(pdf, true, []float64{30, 30, 30, 30, 30, 25}, "Date", "In", "Out", "Net", "Payroll", "Credited")
		for _, day := range report.Days {
			payroll := dayPayroll(day)
			writePDFRow(pdf, false, []float64{30, 30, 30, 30, 30, 25},
				day.Date.Format(exportDateLayout), day.GrossIn.StringFixed(2), day.GrossOut.StringFixed(2),
				day.Net.StringFixed(2), payroll, fmt.Sprintf("%d", len(day.Credited)))
		}
		totals := report.Totals
		writePDFRow(pdf, true, []float64{30, 30, 30, 30, 30, 25},
			"Total", totals.GrossIn.StringFixed(2), totals.GrossOut.StringFixed(2), totals.Net.StringFixed(2), totals.Payroll.StringFixed(2), "")
		pdf.Ln(4)
		pdf.Cell(0, 8, fmt.Sprintf("Profit: %s", totals.Profit.StringFixed(2)))
		pdf.Ln(10)

		widths := []float64{60, 20, 30, 30, 30, 30, 30}
		writePDFRow(pdf, true, widths, "Employee", "Days", "Fixed", "Percent", "Earned", "Paid", "Outstanding")
		for _, employee := range report.Employees {
			writePDFRow(pdf, false, widths,
				employeeLabel(employee), fmt.Sprintf("%d", employee.DaysCredited), employee.FixedEarned.StringFixed(2),
				employee.PercentEarned.StringFixed(2), employee.TotalEarned.StringFixed(2), employee.Paid.StringFixed(2),
				employee.Outstanding.StringFixed(2))
		}
	}
	if len(set.Periods) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 10, title(set)+": no periods")
	}
	return pdf.Output(w)
}

func writePDFRow(pdf *gofpdf.Fpdf, bold bool, widths []float64, cells ...string) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 9)
	for i, cell := range cells {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func dayPayroll(day settlement.DayAggregate) string {
	total := decimal.Zero
	for _, comp := range day.Compensation {
		total = total.Add(comp.Total())
	}
	return total.StringFixed(2)
}

func employeeLabel(summary settlement.EmployeeSummary) string {
	if summary.Name != "" {
		return summary.Name
	}
	return summary.EmployeeID
}

// WriteXLSX writes one sheet per period.
func WriteXLSX(w io.Writer, set ReportSet) error {
	f := excelize.NewFile()
	defer f.Close()

	first := ""
	for _, report := range set.Periods {
		sheet := sheetName(report.Period)
		if first == "" {
			first = sheet
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeSheet(f, sheet, report); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func sheetName(period settlement.Period) string {
	return fmt.Sprintf("%s %02d-%02d", period.Start.Format("Jan"), period.Start.Day(), period.End.Day())
}

func writeSheet(f *excelize.File, sheet string, report settlement.PeriodReport) error {
	rows := [][]any{{"Date", "In", "Out", "Net", "Terminal", "Cash", "Payroll", "Credited"}}
	for _, day := range report.Days {
		rows = append(rows, []any{
			day.Date.Format(exportDateLayout),
			day.GrossIn.InexactFloat64(),
			day.GrossOut.InexactFloat64(),
			day.Net.InexactFloat64(),
			day.Terminal.InexactFloat64(),
			day.CashOnly.InexactFloat64(),
			dayPayroll(day),
			strings.Join(day.Credited, ", "),
		})
	}
	totals := report.Totals
	rows = append(rows,
		[]any{"Total", totals.GrossIn.InexactFloat64(), totals.GrossOut.InexactFloat64(), totals.Net.InexactFloat64(),
			totals.Terminal.InexactFloat64(), totals.CashOnly.InexactFloat64(), totals.Payroll.StringFixed(2), ""},
		[]any{"Profit", totals.Profit.StringFixed(2)},
		[]any{},
		[]any{"Employee", "Days", "Fixed", "Percent", "Earned", "Paid", "Outstanding"},
	)
	for _, employee := range report.Employees {
		rows = append(rows, []any{
			employeeLabel(employee),
			employee.DaysCredited,
			employee.FixedEarned.StringFixed(2),
			employee.PercentEarned.StringFixed(2),
			employee.TotalEarned.StringFixed(2),
			employee.Paid.StringFixed(2),
			employee.Outstanding.StringFixed(2),
		})
	}
	if len(report.Creators) > 0 {
		rows = append(rows, []any{}, []any{"Created by", "Orders", "Amount"})
		for _, creator := range report.Creators {
			rows = append(rows, []any{creator.EmployeeID, creator.Count, creator.Amount.StringFixed(2)})
		}
	}
	if len(report.OrderTypes) > 0 {
		rows = append(rows, []any{}, []any{"Order type", "Orders", "Amount"})
		for _, orderType := range report.OrderTypes {
			rows = append(rows, []any{orderType.Type, orderType.Count, orderType.Amount.StringFixed(2)})
		}
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// DigestText is a short Telegram-safe HTML summary of one period report.
func DigestText(set ReportSet, report settlement.PeriodReport, shopName string) string {
	var b strings.Builder
	heading := title(set)
	if shopName != "" {
		heading += " · " + shopName
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(heading))
	fmt.Fprintf(&b, "%s to %s\n", report.Period.Start.Format(exportDateLayout), report.Period.End.Format(exportDateLayout))
	totals := report.Totals
	fmt.Fprintf(&b, "Net: %s\nPayroll: %s\nProfit: %s\nPaid: %s\n",
		totals.Net.StringFixed(2), totals.Payroll.StringFixed(2), totals.Profit.StringFixed(2), totals.Paid.StringFixed(2))
	for _, employee := range report.Employees {
		if employee.Outstanding.IsZero() {
			continue
		}
		fmt.Fprintf(&b, "• %s: %s outstanding\n", html.EscapeString(employeeLabel(employee)), employee.Outstanding.StringFixed(2))
	}
	return b.String()
}
