package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/model"
)

const fontName = "Helvetica"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateReceipt renders the handover receipt for a completed pickup.
func (g *Generator) GenerateReceipt(doc model.HandoverReceipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Pickup handover receipt", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	p := doc.Pickup
	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, "Food pickup handover receipt", "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Pickup %s", p.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s", formatDateTime(doc.IssuedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addEstablishmentBlock(pdf, tr, doc.Establishment)
	pdf.Ln(4)

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Handover", "", 1, "L", false, 0, "")

	headers := []string{"Item", "Unit", "Requested", "Delivered"}
	colWidths := []float64{90, 25, 32.5, 32.5}
	drawTableRow(pdf, headers, colWidths, true)
	drawTableRow(pdf, []string{
		tr(doc.Lot.Name),
		tr(doc.Lot.Unit),
		formatQuantity(p.RequestedQuantity),
		formatNullQuantity(p.DeliveredQuantity),
	}, colWidths, false)
	pdf.Ln(4)

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Timeline", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	timeline := [][2]string{
		{"Requested", formatDateTime(p.CreatedAt)},
		{"Scheduled for", formatDate(p.ScheduledDate)},
		{"Confirmed", formatDateTimePtr(p.ConfirmedAt)},
		{"Visit confirmed", formatDateTimePtr(p.VisitConfirmedAt)},
		{"Completed", formatDateTimePtr(p.CompletedAt)},
	}
	for _, line := range timeline {
		pdf.CellFormat(45, 6, line[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, line[1], "", 1, "L", false, 0, "")
	}

	if notes := strings.TrimSpace(p.EstablishmentNotes); notes != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 5, tr("Establishment notes: "+notes), "", "L", false)
	}
	if notes := strings.TrimSpace(p.BeneficiaryNotes); notes != "" {
		pdf.MultiCell(0, 5, tr("Beneficiary notes: "+notes), "", "L", false)
	}

	pdf.Ln(8)
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Signatures", "", 1, "L", false, 0, "")
	signatureBlock(pdf, "Handed over", safeValue(tr(doc.Establishment.ContactName)))
	signatureBlock(pdf, "Received", p.BeneficiaryID.String())

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addEstablishmentBlock(pdf *gofpdf.Fpdf, tr func(string) string, est model.Establishment) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Establishment", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		safeValue(est.Name),
		fmt.Sprintf("Address: %s", safeValue(est.Address)),
		fmt.Sprintf("Phone: %s", safeValue(est.Phone)),
		fmt.Sprintf("Contact: %s", safeValue(est.ContactName)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, label, name string) {
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s: ______________________ /%s/", label, name), "", 1, "L", false, 0, "")
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatQuantity(value decimal.Decimal) string {
	return value.StringFixed(3)
}

func formatNullQuantity(value decimal.NullDecimal) string {
	if !value.Valid {
		return "-"
	}
	return formatQuantity(value.Decimal)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006 15:04")
}

func formatDateTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDateTime(*t)
}
