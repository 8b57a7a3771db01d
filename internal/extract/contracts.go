package extract

import "context"

// Kind tags the extraction outcome so callers never have to sniff sentinel
// strings to tell failure modes apart.
type Kind string

const (
	// KindOK means Text carries usable document text.
	KindOK Kind = "OK"
	// KindEmpty means the document was readable but produced no text.
	KindEmpty Kind = "EMPTY"
	// KindNotFound means the stored object does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindUndecodable means the bytes could not be decoded or OCR'd.
	KindUndecodable Kind = "UNDECODABLE"
)

// Result is the extraction outcome for one document. Text is always set: a
// placeholder message for the non-OK kinds, so every result remains valid
// prompt input.
type Result struct {
	Kind   Kind
	Text   string
	Method string // "direct" | "docx" | "image-ocr" | "pdf-ocr"
	Pages  int
}

// Usable reports whether the result contributes real text to the analysis.
func (r Result) Usable() bool {
	return r.Kind == KindOK
}

// TextExtractor turns a stored document reference into plain text. It never
// returns an error; failures surface as tagged placeholder results.
type TextExtractor interface {
	Extract(ctx context.Context, key string) Result
}
