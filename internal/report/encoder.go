// Package report renders analysis text into downloadable artifacts. The DOCX
// and PDF containers are built by hand, byte for byte, with no document
// library: the encoder is pure and deterministic, so re-encoding the same
// analysis text always yields identical bytes.
package report

import (
	"github.com/aspor-platform/docintake/constants"
)

// Encode renders text under the given title into the requested format and
// returns the bytes plus their content type. It performs no I/O.
func Encode(text, title string, format constants.OutputFormat) ([]byte, string) {
	switch format {
	case constants.FormatDocx:
		return encodeDocx(text, title), constants.FormatDocx.MIME()
	case constants.FormatPDF:
		return encodePDF(text, title), constants.FormatPDF.MIME()
	default:
		return []byte(text), constants.FormatTxt.MIME()
	}
}
