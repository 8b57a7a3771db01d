package report

import (
	"bytes"
	"fmt"
	"strings"
)

// Page layout constants for the single-page report.
const (
	pdfTitleY    = 750 // baseline of the title
	pdfBodyTop   = 720 // first body line baseline
	pdfLineStep  = 15
	pdfBottomY   = 50 // lines below this are clipped
	pdfLeftX     = 50
	pdfLineWidth = 80  // characters per line before truncation
	pdfMaxLines  = 200 // hard cap on input lines considered
	pdfTitleSize = 16
	pdfBodySize  = 10
)

// encodePDF builds a minimal single-page PDF by hand: a fixed object graph
// (catalog -> pages -> page -> content stream) with a length-prefixed content
// stream of positioned text operators. The /Length value and the xref
// offsets are computed exactly.
func encodePDF(text, title string) []byte {
	stream := buildContentStream(text, title)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]\n/Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >>\n/Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(objects)+1, xrefStart)

	return buf.Bytes()
}

// buildContentStream lays out the title and body lines as text-showing
// operators, stepping down the page and clipping at the bottom margin.
// Returned bytes are Latin-1; unmappable runes are dropped.
func buildContentStream(text, title string) []byte {
	var ops []string
	y := pdfTitleY

	ops = append(ops,
		"BT",
		fmt.Sprintf("/F1 %d Tf", pdfTitleSize),
		fmt.Sprintf("%d %d Td", pdfLeftX, y),
		fmt.Sprintf("(%s) Tj", escapePDFString(title)),
		"ET",
	)
	y = pdfBodyTop

	lines := strings.Split(text, "\n")
	if len(lines) > pdfMaxLines {
		lines = lines[:pdfMaxLines]
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || y <= pdfBottomY {
			continue
		}
		clipped := line
		if len(clipped) > pdfLineWidth {
			clipped = clipped[:pdfLineWidth]
		}
		ops = append(ops,
			"BT",
			fmt.Sprintf("/F1 %d Tf", pdfBodySize),
			fmt.Sprintf("%d %d Td", pdfLeftX, y),
			fmt.Sprintf("(%s) Tj", escapePDFString(clipped)),
			"ET",
		)
		y -= pdfLineStep
	}

	return latin1Bytes(strings.Join(ops, "\n"))
}

// escapePDFString escapes the three characters with meaning inside a PDF
// literal string. Backslash must go first.
func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}

// latin1Bytes narrows a string to Latin-1, dropping runes outside the range.
// Helvetica with the default encoding cannot show anything wider.
func latin1Bytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r <= 0xFF {
			out = append(out, byte(r))
		}
	}
	return out
}
