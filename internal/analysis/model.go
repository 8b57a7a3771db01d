// Package analysis builds the per-model prompt, calls the text-generation
// service, and shapes the resulting report text.
package analysis

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aspor-platform/docintake/constants"
)

// ModelSpec binds a model selector to its prompt template, report title and
// structured-section schema. Adding a model means adding a spec here, not
// branching on selector strings.
type ModelSpec struct {
	Model          constants.ModelType
	Title          string
	PromptTemplate string
	// SectionSchema validates the optional JSON summary block the model may
	// emit at the end of its report.
	SectionSchema *jsonschema.Schema
}

const contragarantiasPrompt = `Eres un asistente especializado en análisis legal de escrituras públicas, enfocado en validar capacidad de firma de contragarantías. Tu función es analizar escrituras de poderes para determinar si los apoderados pueden suscribir pagarés y otorgar mandatos.

CONTEXTO
- Contragarantía: mandato que permite suscribir pagarés para facilitar cobro ejecutivo.
- Objetivo: identificar quién puede firmar contragarantías según sus facultades legales.

Entrega un informe estructurado con: información societaria, fechas legales críticas, apoderados y sus facultades, forma de actuación y conclusión.

Si agregas un resumen estructurado, hazlo en un bloque JSON delimitado por ` + "```json ... ```" + ` al final del informe.

Analiza los siguientes documentos:

{document_text}`

const informeSocialPrompt = `Eres un asistente especializado en análisis jurídico-societario para generar INFORMES SOCIALES profesionales a partir de escrituras de constitución de sociedades. Tu función es extraer información específica de documentos legales y presentarla en formato de informe estructurado.

CONTEXTO
- Fuente: escrituras públicas de constitución de sociedades.
- Formato: estructura profesional para estudios de abogados.

Entrega un informe con: antecedentes del cliente, objeto social, capital, socios y participación, administración, directorio, vigencia, domicilio, antecedentes legales y apoderados.

Si agregas un resumen estructurado, hazlo en un bloque JSON delimitado por ` + "```json ... ```" + ` al final del informe.

Analiza los siguientes documentos:

{document_text}`

const contragarantiasSchema = `{
	"type": "object",
	"properties": {
		"razon_social": {"type": "string"},
		"rut": {"type": "string"},
		"apoderados": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"nombre": {"type": "string"},
					"rut": {"type": "string"},
					"puede_firmar": {"type": "boolean"}
				},
				"required": ["nombre"]
			}
		},
		"conclusion": {"type": "string"}
	}
}`

const informeSocialSchema = `{
	"type": "object",
	"properties": {
		"razon_social": {"type": "string"},
		"rut": {"type": "string"},
		"capital_total": {"type": "string"},
		"socios": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"nombre": {"type": "string"},
					"rut": {"type": "string"},
					"participacion": {"type": "string"}
				},
				"required": ["nombre"]
			}
		},
		"domicilio": {"type": "string"}
	}
}`

var specs = map[constants.ModelType]*ModelSpec{
	constants.ModelContragarantias: {
		Model:          constants.ModelContragarantias,
		Title:          "INFORME DE CONTRAGARANTÍAS",
		PromptTemplate: contragarantiasPrompt,
		SectionSchema:  jsonschema.MustCompileString("contragarantias.json", contragarantiasSchema),
	},
	constants.ModelInformeSocial: {
		Model:          constants.ModelInformeSocial,
		Title:          "INFORME SOCIAL",
		PromptTemplate: informeSocialPrompt,
		SectionSchema:  jsonschema.MustCompileString("informe_social.json", informeSocialSchema),
	},
}

// SpecFor returns the spec for a model selector; ok is false for unknown
// selectors.
func SpecFor(model constants.ModelType) (*ModelSpec, bool) {
	spec, ok := specs[model]
	return spec, ok
}

// TitleFor returns the report title used by the encoder for this model.
func TitleFor(model constants.ModelType) string {
	if spec, ok := specs[model]; ok {
		return spec.Title
	}
	return "INFORME"
}

// buildPrompt fills the template with the capped document text.
func (s *ModelSpec) buildPrompt(documentText string) string {
	return strings.Replace(s.PromptTemplate, "{document_text}", documentText, 1)
}
