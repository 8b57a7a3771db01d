package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspor-platform/docintake/constants"
)

func readDocxPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "docx output must be a readable zip")
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		var sb bytes.Buffer
		_, err = sb.ReadFrom(rc)
		require.NoError(t, err)
		return sb.String()
	}
	t.Fatalf("part %s not found in docx package", name)
	return ""
}

func TestEncodeDocxPackageParts(t *testing.T) {
	for _, text := range []string{"", "   \n  ", "hola\nmundo"} {
		data, contentType := Encode(text, "INFORME SOCIAL", constants.FormatDocx)
		assert.Equal(t, constants.FormatDocx.MIME(), contentType)

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err, "input %q must still produce a valid zip", text)

		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Contains(t, names, "[Content_Types].xml")
		assert.Contains(t, names, "_rels/.rels")
		assert.Contains(t, names, "word/_rels/document.xml.rels")
		assert.Contains(t, names, "word/styles.xml")
		assert.Contains(t, names, "word/document.xml")
	}
}

func TestEncodeDocxEscapesXMLMetacharacters(t *testing.T) {
	data, _ := Encode("A & B <x> \"q\" 'a'", "T & T", constants.FormatDocx)
	doc := readDocxPart(t, data, "word/document.xml")

	assert.Contains(t, doc, "A &amp; B &lt;x&gt; &quot;q&quot; &apos;a&apos;")
	assert.Contains(t, doc, "T &amp; T")
	assert.NotContains(t, doc, "<x>")
}

func TestEncodeDocxTitleAndBody(t *testing.T) {
	data, _ := Encode("primer parrafo", "INFORME DE CONTRAGARANTÍAS", constants.FormatDocx)
	doc := readDocxPart(t, data, "word/document.xml")

	assert.Contains(t, doc, "INFORME DE CONTRAGARANTÍAS")
	assert.Contains(t, doc, "primer parrafo")
	assert.True(t, strings.Index(doc, "INFORME") < strings.Index(doc, "primer parrafo"),
		"title paragraph must precede the body")
}

func TestIsHeadingLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"ANTECEDENTES GENERALES", true},
		{"SECCION 1: RESUMEN", true},
		{"===================", true},
		{"--- corte ---", true},
		{"Antecedentes generales", false},
		{"texto normal", false},
		{"1234 5678", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isHeadingLine(tc.line), "line %q", tc.line)
	}
}

func TestEncodeDocxHeadingStyle(t *testing.T) {
	data, _ := Encode("RESUMEN EJECUTIVO\ncontenido normal", "Informe", constants.FormatDocx)
	doc := readDocxPart(t, data, "word/document.xml")

	headingIdx := strings.Index(doc, "RESUMEN EJECUTIVO")
	require.Greater(t, headingIdx, 0)
	assert.Contains(t, doc[:headingIdx], `w:val="Heading1"`)
}

func TestEncodePDFStructure(t *testing.T) {
	data, contentType := Encode("linea uno\nlinea dos", "INFORME SOCIAL", constants.FormatPDF)
	assert.Equal(t, "application/pdf", contentType)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, "%PDF-1.4\n"))
	assert.True(t, strings.HasSuffix(s, "%%EOF"))
	for i := 1; i <= 4; i++ {
		assert.Contains(t, s, fmt.Sprintf("%d 0 obj", i))
	}
	assert.Contains(t, s, "/Type /Catalog")
	assert.Contains(t, s, "/BaseFont /Helvetica")
}

func TestEncodePDFStreamLengthExact(t *testing.T) {
	for _, text := range []string{"", "una linea", strings.Repeat("linea\n", 300)} {
		data, _ := Encode(text, "Titulo", constants.FormatPDF)
		s := string(data)

		var declared int
		_, err := fmt.Sscanf(s[strings.Index(s, "/Length"):], "/Length %d", &declared)
		require.NoError(t, err)

		start := strings.Index(s, "stream\n") + len("stream\n")
		end := strings.Index(s, "\nendstream")
		require.Greater(t, end, start)
		assert.Equal(t, declared, end-start, "declared /Length must match stream bytes")
	}
}

func TestEncodePDFXrefOffsetsExact(t *testing.T) {
	data, _ := Encode("cuerpo", "Titulo", constants.FormatPDF)
	s := string(data)

	xrefIdx := strings.Index(s, "xref\n")
	require.Greater(t, xrefIdx, 0)

	var startxref int
	_, err := fmt.Sscanf(s[strings.Index(s, "startxref"):], "startxref\n%d", &startxref)
	require.NoError(t, err)
	assert.Equal(t, xrefIdx, startxref)

	// Each xref entry must point at the start of its object.
	table := s[xrefIdx:]
	lines := strings.Split(table, "\n")
	for i := 1; i <= 4; i++ {
		var off int
		_, err := fmt.Sscanf(lines[2+i], "%010d", &off)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(s[off:], fmt.Sprintf("%d 0 obj", i)),
			"xref entry %d points at %q", i, s[off:off+12])
	}
}

func TestEncodePDFEscapesParentheses(t *testing.T) {
	data, _ := Encode(`valor (neto) y \ barra`, "t(t)", constants.FormatPDF)
	s := string(data)
	assert.Contains(t, s, `valor \(neto\) y \\ barra`)
	assert.Contains(t, s, `t\(t\)`)
}

func TestEncodePDFClipsLongLines(t *testing.T) {
	long := strings.Repeat("x", 500)
	data, _ := Encode(long, "Titulo", constants.FormatPDF)
	assert.Contains(t, string(data), "("+strings.Repeat("x", pdfLineWidth)+") Tj")
	assert.NotContains(t, string(data), strings.Repeat("x", pdfLineWidth+1))
}

func TestEncodeTxtPassthrough(t *testing.T) {
	text := "contenido plano\ncon saltos"
	data, contentType := Encode(text, "ignorado", constants.FormatTxt)
	assert.Equal(t, text, string(data))
	assert.Equal(t, "text/plain; charset=utf-8", contentType)
}

func TestEncodeDeterministic(t *testing.T) {
	for _, format := range constants.OutputFormats {
		a, _ := Encode("mismo texto", "Mismo Titulo", format)
		b, _ := Encode("mismo texto", "Mismo Titulo", format)
		assert.Equal(t, a, b, "format %s must be byte-identical across calls", format)
	}
}
