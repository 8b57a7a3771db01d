package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/common"
)

// FallbackMarker appears in every degraded report so clients and tests can
// recognize that generation failed and a placeholder analysis was produced.
const FallbackMarker = "INFORME GENERADO EN MODO DE CONTINGENCIA"

// Generator is the text-generation service port.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is what the invoker hands to the encoder. Text is always non-empty
// and always valid encoder input.
type Outcome struct {
	Text     string
	Degraded bool
}

// Invoker calls the generation service once per run and never fails: service
// errors are downgraded to a clearly marked fallback report.
type Invoker struct {
	gen Generator
	log *slog.Logger
}

func NewInvoker(gen Generator, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{gen: gen, log: logger}
}

// Invoke builds the prompt for the model and returns the generated report
// text, or a deterministic fallback on any failure.
func (inv *Invoker) Invoke(ctx context.Context, model constants.ModelType, concatenated string, fileNames []string) Outcome {
	spec, ok := SpecFor(model)
	if !ok {
		// create() validates the selector, so this is a programming error;
		// still degrade rather than panic.
		inv.log.Error("llm.invoke.unknown_model", "model", model)
		return Outcome{Text: fallbackReport(model, fileNames, fmt.Errorf("unknown model %q", model)), Degraded: true}
	}

	prompt := spec.BuildPrompt(concatenated)
	start := time.Now()
	inv.log.Info("llm.invoke.start", "model", model, "prompt_chars", len(prompt))

	text, err := inv.gen.Generate(ctx, prompt)
	if err != nil {
		inv.log.Error("llm.invoke.failed",
			"model", model,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Outcome{Text: fallbackReport(model, fileNames, err), Degraded: true}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		inv.log.Warn("llm.invoke.empty_response", "model", model)
		return Outcome{Text: fallbackReport(model, fileNames, fmt.Errorf("empty response")), Degraded: true}
	}

	text = inv.validateSections(spec, text)
	inv.log.Info("llm.invoke.ok",
		"model", model,
		"report_chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{Text: text}
}

// fallbackReport is deterministic given the same inputs (modulo the date
// line) and remains valid encoder input.
func fallbackReport(model constants.ModelType, fileNames []string, cause error) string {
	var b strings.Builder
	b.WriteString(TitleFor(model))
	b.WriteString("\n==============================\n\n")
	b.WriteString(FallbackMarker)
	b.WriteString("\n\n")
	b.WriteString("El servicio de análisis no estuvo disponible y no fue posible generar el informe completo.\n")
	b.WriteString("Los documentos quedaron registrados y el análisis puede reintentarse.\n\n")
	b.WriteString("DOCUMENTOS RECIBIDOS\n--------------------\n")
	if len(fileNames) == 0 {
		b.WriteString("- (sin nombre)\n")
	}
	for _, name := range fileNames {
		b.WriteString("- " + name + "\n")
	}
	b.WriteString("\nDETALLE TÉCNICO\n---------------\n")
	b.WriteString(common.Truncate(cause.Error(), 300))
	b.WriteString("\n")
	return b.String()
}
