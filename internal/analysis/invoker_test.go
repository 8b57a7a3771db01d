package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspor-platform/docintake/constants"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func TestConcatDocumentsLabelsFiles(t *testing.T) {
	got := ConcatDocuments(
		[]string{"texto uno", "texto dos"},
		[]string{"escritura.pdf", ""},
	)
	assert.Contains(t, got, "--- DOCUMENTO 1: escritura.pdf ---")
	assert.Contains(t, got, "--- DOCUMENTO 2: Archivo 2 ---")
	assert.Less(t, strings.Index(got, "texto uno"), strings.Index(got, "texto dos"),
		"document order must follow input order")
}

func TestBuildPromptEmbedsAndCapsText(t *testing.T) {
	spec, ok := SpecFor(constants.ModelContragarantias)
	require.True(t, ok)

	prompt := spec.BuildPrompt("contenido breve")
	assert.Contains(t, prompt, "contenido breve")
	assert.NotContains(t, prompt, "{document_text}")

	long := strings.Repeat("a", MaxPromptChars+5000)
	capped := spec.BuildPrompt(long)
	assert.Less(t, len(capped), len(spec.PromptTemplate)+MaxPromptChars+1)
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "INFORME DE CONTRAGARANTÍAS", TitleFor(constants.ModelContragarantias))
	assert.Equal(t, "INFORME SOCIAL", TitleFor(constants.ModelInformeSocial))
	assert.Equal(t, "INFORME", TitleFor("Z"))
}

func TestInvokeReturnsGeneratedText(t *testing.T) {
	gen := &stubGenerator{text: "  ANTECEDENTES\nEl informe completo.  "}
	inv := NewInvoker(gen, nil)

	out := inv.Invoke(context.Background(), constants.ModelContragarantias, "docs", []string{"a.pdf"})
	assert.False(t, out.Degraded)
	assert.Equal(t, "ANTECEDENTES\nEl informe completo.", out.Text)
	assert.Contains(t, gen.prompt, "contragarantías")
}

func TestInvokeFallsBackOnError(t *testing.T) {
	inv := NewInvoker(&stubGenerator{err: errors.New("throttled")}, nil)

	out := inv.Invoke(context.Background(), constants.ModelInformeSocial, "docs", []string{"escritura.pdf", "anexo.docx"})
	assert.True(t, out.Degraded)
	assert.Contains(t, out.Text, FallbackMarker)
	assert.Contains(t, out.Text, "INFORME SOCIAL")
	assert.Contains(t, out.Text, "escritura.pdf")
	assert.Contains(t, out.Text, "anexo.docx")
	assert.Contains(t, out.Text, "throttled")
}

func TestInvokeFallsBackOnEmptyResponse(t *testing.T) {
	inv := NewInvoker(&stubGenerator{text: "   \n "}, nil)

	out := inv.Invoke(context.Background(), constants.ModelContragarantias, "docs", nil)
	assert.True(t, out.Degraded)
	assert.Contains(t, out.Text, FallbackMarker)
}

func TestInvokeFallbackIsDeterministic(t *testing.T) {
	inv := NewInvoker(&stubGenerator{err: errors.New("same cause")}, nil)

	a := inv.Invoke(context.Background(), constants.ModelContragarantias, "docs", []string{"x.pdf"})
	b := inv.Invoke(context.Background(), constants.ModelContragarantias, "docs", []string{"x.pdf"})
	assert.Equal(t, a.Text, b.Text)
}

func TestValidateSectionsKeepsConformingBlock(t *testing.T) {
	inv := NewInvoker(&stubGenerator{}, nil)
	spec, _ := SpecFor(constants.ModelContragarantias)

	text := "Informe en prosa.\n```json\n{\"razon_social\": \"ACME SpA\", \"apoderados\": [{\"nombre\": \"Juan\"}]}\n```"
	got := inv.validateSections(spec, text)
	assert.Equal(t, text, got)
}

func TestValidateSectionsStripsMalformedJSON(t *testing.T) {
	inv := NewInvoker(&stubGenerator{}, nil)
	spec, _ := SpecFor(constants.ModelContragarantias)

	text := "Informe en prosa.\n```json\n{not valid json\n```"
	got := inv.validateSections(spec, text)
	assert.Equal(t, "Informe en prosa.", got)
}

func TestValidateSectionsStripsSchemaViolations(t *testing.T) {
	inv := NewInvoker(&stubGenerator{}, nil)
	spec, _ := SpecFor(constants.ModelContragarantias)

	// apoderados items require "nombre".
	text := "Prosa.\n```json\n{\"apoderados\": [{\"rut\": \"1-9\"}]}\n```"
	got := inv.validateSections(spec, text)
	assert.Equal(t, "Prosa.", got)
}

func TestValidateSectionsNoBlockPassesThrough(t *testing.T) {
	inv := NewInvoker(&stubGenerator{}, nil)
	spec, _ := SpecFor(constants.ModelInformeSocial)

	text := "Solo prosa, sin bloque estructurado."
	assert.Equal(t, text, inv.validateSections(spec, text))
}
