package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
)

const (
	summarySheet = "Summary"
	pickupsSheet = "Pickups"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateStatistics renders a two-sheet workbook: aggregate figures and one row per pickup.
func (g *Generator) GenerateStatistics(report model.StatisticsReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	if _, err := file.NewSheet(pickupsSheet); err != nil {
		return nil, err
	}
	if err := g.writePickups(file, pickupsSheet, report.Pickups); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.StatisticsReport) error {
	stats := report.Statistics
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Scope")
	set("B1", report.ScopeLabel)
	set("A2", "Period start")
	set("B2", formatDatePtr(report.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDatePtr(report.PeriodEnd))
	set("A4", "Generated at")
	set("B4", formatDateTime(report.GeneratedAt))
	set("A5", "Total pickups")
	set("B5", stats.TotalPickups)
	set("A6", "Completion rate, %")
	set("B6", formatRate(stats.CompletionRate))
	set("A7", "Cancellation rate, %")
	set("B7", formatRate(stats.CancellationRate))
	set("A8", "Rejection rate, %")
	set("B8", formatRate(stats.RejectionRate))
	set("A9", "Requested (completed)")
	set("B9", formatQuantity(stats.RequestedCompleted))
	set("A10", "Delivered (completed)")
	set("B10", formatQuantity(stats.DeliveredCompleted))
	set("A11", "Average delivery ratio")
	set("B11", fmt.Sprintf("%.3f", stats.AverageDeliveryRatio))

	tableRow := 13
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Pickups")
	for i, status := range lifecycle.AllStatuses {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(status))
		set(fmt.Sprintf("B%d", row), stats.ByStatus[status])
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "B", 40)
	return nil
}

func (g *Generator) writePickups(file *excelize.File, sheet string, rows []model.PickupRow) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Created",
		"Pickup",
		"Lot",
		"Unit",
		"Status",
		"Requested",
		"Delivered",
		"Scheduled",
		"Closed",
		"Cancellation reason",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	for i, r := range rows {
		p := r.Pickup
		row := i + 2
		set(fmt.Sprintf("A%d", row), formatDateTime(p.CreatedAt))
		set(fmt.Sprintf("B%d", row), p.ID.String())
		set(fmt.Sprintf("C%d", row), r.LotName)
		set(fmt.Sprintf("D%d", row), r.Unit)
		set(fmt.Sprintf("E%d", row), string(p.Status))
		set(fmt.Sprintf("F%d", row), formatQuantity(p.RequestedQuantity))
		set(fmt.Sprintf("G%d", row), formatNullQuantity(p.DeliveredQuantity))
		set(fmt.Sprintf("H%d", row), formatDate(p.ScheduledDate))
		set(fmt.Sprintf("I%d", row), formatDateTime(closedAt(p)))
		set(fmt.Sprintf("J%d", row), formatString(p.CancellationReason))
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 38)
	_ = file.SetColWidth(sheet, "C", "C", 32)
	_ = file.SetColWidth(sheet, "D", "E", 14)
	_ = file.SetColWidth(sheet, "F", "H", 14)
	_ = file.SetColWidth(sheet, "I", "I", 20)
	_ = file.SetColWidth(sheet, "J", "J", 40)
	return nil
}

func closedAt(p model.Pickup) time.Time {
	switch {
	case p.CompletedAt != nil:
		return *p.CompletedAt
	case p.CancelledAt != nil:
		return *p.CancelledAt
	default:
		return time.Time{}
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func formatQuantity(value decimal.Decimal) string {
	return value.StringFixed(3)
}

func formatNullQuantity(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return formatQuantity(value.Decimal)
}

func formatRate(value float64) string {
	return fmt.Sprintf("%.2f", value*100)
}
