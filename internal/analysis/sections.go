package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// validateSections checks the optional fenced JSON summary block against the
// model's section schema. A malformed or non-conforming block is stripped
// from the report; the prose analysis stays untouched.
func (inv *Invoker) validateSections(spec *ModelSpec, text string) string {
	match := jsonBlockRe.FindStringSubmatch(text)
	if match == nil {
		return text
	}
	raw := strings.TrimSpace(match[1])

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		inv.log.Warn("llm.sections.invalid_json", "model", spec.Model, "error", err)
		return stripBlock(text)
	}
	if err := spec.SectionSchema.Validate(doc); err != nil {
		inv.log.Warn("llm.sections.schema_violation", "model", spec.Model, "error", err)
		return stripBlock(text)
	}
	inv.log.Info("llm.sections.valid", "model", spec.Model, "bytes", len(raw))
	return text
}

func stripBlock(text string) string {
	return strings.TrimSpace(jsonBlockRe.ReplaceAllString(text, ""))
}
