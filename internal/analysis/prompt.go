package analysis

import (
	"fmt"
	"strings"

	"github.com/aspor-platform/docintake/internal/common"
)

// MaxPromptChars caps how much concatenated document text is embedded in the
// prompt, bounding the generation request size.
const MaxPromptChars = 10000

// ConcatDocuments joins per-file extracted text with labeled delimiters so
// the model can attribute content to files. Order follows the input file
// order.
func ConcatDocuments(texts, fileNames []string) string {
	var b strings.Builder
	for i, text := range texts {
		name := fmt.Sprintf("Archivo %d", i+1)
		if i < len(fileNames) && fileNames[i] != "" {
			name = fileNames[i]
		}
		b.WriteString(fmt.Sprintf("\n\n--- DOCUMENTO %d: %s ---\n\n", i+1, name))
		b.WriteString(text)
	}
	return b.String()
}

// BuildPrompt assembles the final generation prompt for the model.
func (s *ModelSpec) BuildPrompt(concatenated string) string {
	return s.buildPrompt(common.Truncate(concatenated, MaxPromptChars))
}
