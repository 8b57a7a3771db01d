package constants

import "strings"

// OutputFormat is the rendered report format requested for a run.
type OutputFormat string

const (
	FormatDocx OutputFormat = "docx"
	FormatPDF  OutputFormat = "pdf"
	FormatTxt  OutputFormat = "txt"
)

// OutputFormats holds the allowed report formats.
var OutputFormats = []OutputFormat{FormatDocx, FormatPDF, FormatTxt}

// Valid reports whether f is one of the allowed report formats.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatDocx, FormatPDF, FormatTxt:
		return true
	}
	return false
}

// MIME returns the content type served for the format.
func (f OutputFormat) MIME() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// AllowedUploadExtensions holds the document extensions accepted at upload.
var AllowedUploadExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"doc":  {},
	"txt":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// MaxFilesPerRun bounds the number of documents in a single run.
const MaxFilesPerRun = 3

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
