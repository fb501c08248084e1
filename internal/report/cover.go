package report

import (
	"bytes"
	"fmt"
)

// pdfLine is a single line of text on a generated page.
type pdfLine struct {
	Text string
	Bold bool
	Size float64
}

const (
	pageWidth  = 595.0 // A4 portrait, points
	pageHeight = 842.0
	marginX    = 54.0
	topY       = 780.0
	bottomY    = 60.0
	lineGap    = 6.0
)

// renderTextPDF builds a standalone PDF from lines of Helvetica text,
// paginating when a page fills up. The output is plain uncompressed
// PDF 1.4 so the merge step can consume it like any exported deck.
// Helvetica carries WinAnsi only; characters outside Latin-1 are
// replaced with '?'.
func renderTextPDF(lines []pdfLine) []byte {
	var pages [][]pdfLine
	var current []pdfLine
	y := topY
	for _, line := range lines {
		size := line.Size
		if size == 0 {
			size = 11
		}
		if y-(size+lineGap) < bottomY && len(current) > 0 {
			pages = append(pages, current)
			current = nil
			y = topY
		}
		current = append(current, line)
		y -= size + lineGap
	}
	if len(current) > 0 || len(pages) == 0 {
		pages = append(pages, current)
	}

	// Fixed objects: 1 catalog, 2 page tree, 3 bold font, 4 regular
	// font. Each page adds a page object and a content object.
	totalObjs := 4 + 2*len(pages)
	offsets := make([]int, totalObjs+1)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	var kids bytes.Buffer
	for i := range pages {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(&kids, "%d 0 R", 5+2*i)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), len(pages)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold >>")
	writeObj(4, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, page := range pages {
		pageObj := 5 + 2*i
		contentObj := pageObj + 1
		writeObj(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.0f %.0f] /Resources << /Font << /F1 3 0 R /F2 4 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, contentObj))

		stream := renderContentStream(page)
		writeObj(contentObj, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", totalObjs+1)
	for i := 1; i <= totalObjs; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", totalObjs+1, xrefOffset)

	return buf.Bytes()
}

func renderContentStream(lines []pdfLine) string {
	var buf bytes.Buffer
	buf.WriteString("BT\n")
	y := topY
	for _, line := range lines {
		size := line.Size
		if size == 0 {
			size = 11
		}
		y -= size + lineGap
		if line.Text != "" {
			font := "/F2"
			if line.Bold {
				font = "/F1"
			}
			fmt.Fprintf(&buf, "%s %.1f Tf 1 0 0 1 %.1f %.1f Tm (%s) Tj\n",
				font, size, marginX, y, escapePDFText(line.Text))
		}
	}
	buf.WriteString("ET\n")
	return buf.String()
}

// escapePDFText escapes PDF string delimiters and folds the text into
// Latin-1, the limit of the built-in Helvetica encoding.
func escapePDFText(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch {
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '(':
			buf.WriteString(`\(`)
		case r == ')':
			buf.WriteString(`\)`)
		case r == '\n' || r == '\r':
			buf.WriteByte(' ')
		case r < 0x20:
			// skip other control characters
		case r <= 0xff:
			buf.WriteByte(byte(r))
		default:
			buf.WriteByte('?')
		}
	}
	return buf.String()
}
