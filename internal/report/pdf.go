package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/uf2forge/internal/common"
	"example.com/uf2forge/internal/rules"
)

// SaveFlashReportPDF renders the build details and acceptance findings
// for a finished image into a PDF document. A QR code of the output
// digest is embedded when the digest is available.
func SaveFlashReportPDF(info BuildInfo, rep rules.AcceptanceReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Flash Image Report", false)
	pdf.SetAuthor("uf2ctl", false)
	pdf.SetCreator("uf2ctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Flash Image Report")
	addBuildSection(pdf, info)
	addSummarySection(pdf, rep)
	addFindingsSection(pdf, rep.Findings)
	addDigestQR(pdf, info.OutputSha)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addBuildSection(pdf *gofpdf.Fpdf, info BuildInfo) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Image")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Device", value: emptyFallback(info.Device, "-")},
		{label: "Output", value: emptyFallback(info.OutputPath, "-")},
		{label: "Size", value: common.FormatBytes(info.OutputSize)},
		{label: "Blocks", value: strconv.Itoa(info.Blocks)},
		{label: "Script", value: emptyFallback(info.ScriptName, "(unnamed)")},
		{label: "Script bytes", value: strconv.Itoa(info.ScriptLen)},
		{label: "SHA-256", value: emptyFallback(info.OutputSha, "-")},
	}
	for _, item := range items {
		pdf.CellFormat(35, 6, item.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.Ln(4)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep rules.AcceptanceReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Total Findings", value: strconv.Itoa(rep.Summary.Total)},
		{label: "Errors", value: strconv.Itoa(rep.Summary.Errors)},
		{label: "Warnings", value: strconv.Itoa(rep.Summary.Warnings)},
		{label: "Overall", value: passLabel(rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		pdf.Ln(2)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		pdf.Ln(2)
	}
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) {
	if strings.TrimSpace(digest) == "" {
		return
	}
	png, err := DigestQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest-qr", opts, bytes.NewReader(png))
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Verification")
	pdf.Ln(9)
	pdf.ImageOptions("digest-qr", pdf.GetX(), pdf.GetY(), 40, 40, false, opts, 0, "")
	pdf.Ln(44)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.BlockIndex != 0 {
		parts = append(parts, fmt.Sprintf("Block %d", d.BlockIndex))
	}
	if d.Offset != "" {
		parts = append(parts, "Offset "+d.Offset)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " - ")
}
