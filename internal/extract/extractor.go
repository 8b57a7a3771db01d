// Package extract turns stored document references into cleaned plain text,
// choosing OCR or direct decoding by apparent file type.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/ocr"
)

// MaxTextChars bounds the sanitized text handed to the analysis prompt.
const MaxTextChars = 50000

// Placeholder texts for the non-OK result kinds. Kept distinct so operators
// (and tests) can tell the cases apart in stored previews.
const (
	placeholderNotFound    = "[documento no encontrado en el almacenamiento]"
	placeholderUndecodable = "[no se pudo extraer texto del documento]"
	placeholderEmpty       = "[el documento no contiene texto legible]"
)

// Extractor implements TextExtractor over a blob store and the OCR service.
type Extractor struct {
	store  blob.Store
	ocr    ocr.Client
	poller *ocr.Poller
	log    *slog.Logger
}

func NewExtractor(store blob.Store, ocrClient ocr.Client, cfg common.OCRConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxTextChars
	}
	return &Extractor{
		store: store,
		ocr:   ocrClient,
		poller: &ocr.Poller{
			Client:   ocrClient,
			Interval: cfg.PollInterval,
			MaxWait:  cfg.MaxWait,
			MaxChars: maxChars,
			Logger:   logger,
		},
		log: logger,
	}
}

// Extract never returns an error: every failure mode becomes a tagged
// placeholder result so a single bad file cannot abort the run.
func (e *Extractor) Extract(ctx context.Context, key string) Result {
	start := time.Now()
	res := e.extract(ctx, key)
	res.Text = common.SanitizeText(res.Text, MaxTextChars)
	e.log.Info("extract.done",
		"key", key,
		"kind", res.Kind,
		"method", res.Method,
		"chars", len(res.Text),
		"pages", res.Pages,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (e *Extractor) extract(ctx context.Context, key string) Result {
	ext := constants.NormalizeExt(path.Ext(key))
	switch ext {
	case "pdf":
		return e.viaAsyncOCR(ctx, key, "pdf-ocr")
	case "png", "jpg", "jpeg":
		return e.viaSyncOCR(ctx, key)
	case "docx":
		return e.viaDocx(ctx, key)
	case "":
		// Opaque upload keys carry no extension; assume a scanned document.
		return e.viaAsyncOCR(ctx, key, "pdf-ocr")
	default:
		return e.viaDirectDecode(ctx, key)
	}
}

func (e *Extractor) viaSyncOCR(ctx context.Context, key string) Result {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return e.failure(key, err)
	}
	lines, err := e.ocr.DetectLines(ctx, data)
	if err != nil {
		e.log.Warn("extract.image_ocr.failed", "key", key, "error", err)
		return Result{Kind: KindUndecodable, Text: placeholderUndecodable, Method: "image-ocr"}
	}
	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return Result{Kind: KindEmpty, Text: placeholderEmpty, Method: "image-ocr", Pages: 1}
	}
	return Result{Kind: KindOK, Text: text, Method: "image-ocr", Pages: 1}
}

func (e *Extractor) viaAsyncOCR(ctx context.Context, key, method string) Result {
	exists, err := e.store.Exists(ctx, key)
	if err == nil && !exists {
		return Result{Kind: KindNotFound, Text: placeholderNotFound, Method: method}
	}
	text, pages, err := e.poller.Collect(ctx, key)
	if err != nil {
		e.log.Warn("extract.pdf_ocr.failed", "key", key, "error", err)
		return Result{Kind: KindUndecodable, Text: placeholderUndecodable, Method: method}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Kind: KindEmpty, Text: placeholderEmpty, Method: method, Pages: pages}
	}
	return Result{Kind: KindOK, Text: text, Method: method, Pages: pages}
}

func (e *Extractor) viaDocx(ctx context.Context, key string) Result {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return e.failure(key, err)
	}
	text, err := readDocxText(data)
	if err != nil {
		e.log.Warn("extract.docx.failed", "key", key, "error", err)
		return Result{Kind: KindUndecodable, Text: placeholderUndecodable, Method: "docx"}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Kind: KindEmpty, Text: placeholderEmpty, Method: "docx"}
	}
	return Result{Kind: KindOK, Text: text, Method: "docx"}
}

func (e *Extractor) viaDirectDecode(ctx context.Context, key string) Result {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return e.failure(key, err)
	}
	text, ok := decodeText(data)
	if !ok {
		return Result{Kind: KindUndecodable, Text: placeholderUndecodable, Method: "direct"}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Kind: KindEmpty, Text: placeholderEmpty, Method: "direct"}
	}
	return Result{Kind: KindOK, Text: text, Method: "direct"}
}

func (e *Extractor) failure(key string, err error) Result {
	if errors.Is(err, common.ErrNotFound) {
		return Result{Kind: KindNotFound, Text: placeholderNotFound}
	}
	e.log.Warn("extract.read.failed", "key", key, "error", err)
	return Result{Kind: KindUndecodable, Text: placeholderUndecodable}
}

// decodeText tries UTF-8 first, then Latin-1. Bytes that still look binary
// after both (high ratio of replacement/control output) are rejected.
func decodeText(data []byte) (string, bool) {
	if utf8.Valid(data) {
		return string(data), !looksBinary(string(data))
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	s := string(decoded)
	if looksBinary(s) {
		return "", false
	}
	return s, true
}

// looksBinary flags text whose control-character density suggests the input
// was not a text document at all.
func looksBinary(s string) bool {
	if s == "" {
		return false
	}
	ctrl := 0
	total := 0
	for _, r := range s {
		total++
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			ctrl++
		}
	}
	return ctrl*10 > total
}
