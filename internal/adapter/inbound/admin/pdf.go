package admin

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// renderReportPDF builds a minimal single-page PDF 1.4 document listing the
// report's fields as left-aligned text lines. It implements just enough of
// the PDF object model (catalog, page tree, one content stream, the
// built-in Helvetica font) to be readable by any standard viewer — no
// pagination, wrapping, or styling, since a PatchingReport is always short.
func renderReportPDF(report controlplane.PatchingReport, fields map[string]any) []byte {
	lines := []string{
		fmt.Sprintf("Patching Report #%d", report.ID),
		fmt.Sprintf("WAF Log: %d", report.WAFLogID),
		fmt.Sprintf("Generated: %s", report.CreatedAt.Format("2006-01-02 15:04:05")),
		"",
	}
	lines = append(lines, flattenReportFields(fields)...)

	content := buildContentStream(lines)

	var buf bytes.Buffer
	offsets := make([]int, 0, 5)
	buf.WriteString("%PDF-1.4\n")

	offsets = append(offsets, buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets = append(offsets, buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets = append(offsets, buf.Len())
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /MediaBox [0 0 612 792] /Contents 4 0 R >>\nendobj\n")

	offsets = append(offsets, buf.Len())
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", content.Len(), content.String())

	offsets = append(offsets, buf.Len())
	buf.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefStart)

	return buf.Bytes()
}

func buildContentStream(lines []string) *bytes.Buffer {
	var c bytes.Buffer
	c.WriteString("BT\n/F1 11 Tf\n14 TL\n50 742 Td\n")
	for _, line := range lines {
		fmt.Fprintf(&c, "(%s) Tj\nT*\n", escapePDFString(line))
	}
	c.WriteString("ET")
	return &c
}

func escapePDFString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return replacer.Replace(s)
}

// flattenReportFields renders the analysis.Report's decoded JSON fields as
// simple "key: value" lines, sorted for deterministic output.
func flattenReportFields(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	return out
}
