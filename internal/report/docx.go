package report

import (
	"archive/zip"
	"bytes"
	"strings"
	"unicode"
)

// The five parts below are the minimum a word processor needs to open the
// package: the content-types manifest, the two relationship manifests, a
// style sheet, and the document body itself.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
    <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
    <Default Extension="xml" ContentType="application/xml"/>
    <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
    <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
    <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
    <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
    <w:style w:type="paragraph" w:styleId="Normal">
        <w:name w:val="Normal"/>
        <w:rPr>
            <w:sz w:val="24"/>
        </w:rPr>
    </w:style>
    <w:style w:type="paragraph" w:styleId="Heading1">
        <w:name w:val="Heading 1"/>
        <w:basedOn w:val="Normal"/>
        <w:pPr>
            <w:spacing w:before="240" w:after="120"/>
        </w:pPr>
        <w:rPr>
            <w:b/>
            <w:sz w:val="32"/>
        </w:rPr>
    </w:style>
</w:styles>`

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// encodeDocx assembles the minimal valid DOCX package in memory.
func encodeDocx(text, title string) []byte {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
    <w:body>
        <w:p>
            <w:pPr><w:jc w:val="center"/></w:pPr>
            <w:r>
                <w:rPr><w:b/><w:sz w:val="40"/></w:rPr>
                <w:t>`)
	body.WriteString(xmlEscaper.Replace(title))
	body.WriteString(`</w:t>
            </w:r>
        </w:p>
        <w:p/>
`)
	for _, line := range strings.Split(text, "\n") {
		writeParagraph(&body, line)
	}
	body.WriteString(`        <w:sectPr>
            <w:pgSz w:w="11906" w:h="16838"/>
            <w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/>
        </w:sectPr>
    </w:body>
</w:document>`)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxPackageRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", body.String()},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte(part.content))
	}
	_ = zw.Close()
	return buf.Bytes()
}

// writeParagraph emits one styled paragraph element: blank lines become an
// explicit empty paragraph so vertical spacing survives the round trip.
func writeParagraph(body *strings.Builder, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		body.WriteString("        <w:p/>\n")
		return
	}
	escaped := xmlEscaper.Replace(trimmed)
	if isHeadingLine(trimmed) {
		body.WriteString(`        <w:p>
            <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
            <w:r><w:rPr><w:b/></w:rPr><w:t>` + escaped + `</w:t></w:r>
        </w:p>
`)
		return
	}
	body.WriteString(`        <w:p>
            <w:r><w:t>` + xmlEscaper.Replace(line) + `</w:t></w:r>
        </w:p>
`)
}

// isHeadingLine classifies report headings: a line that is entirely
// upper-case (ignoring digits and punctuation, at least one letter), or a
// separator run of = or - characters.
func isHeadingLine(line string) bool {
	if strings.Contains(line, "===") || strings.Contains(line, "---") {
		return true
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
