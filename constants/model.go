package constants

// ModelType selects which domain analysis is performed on a run.
type ModelType string

const (
	// ModelContragarantias validates signing powers for counter-guarantees.
	ModelContragarantias ModelType = "A"
	// ModelInformeSocial produces a corporate-registry report.
	ModelInformeSocial ModelType = "B"
)

// Valid reports whether m is a known model selector.
func (m ModelType) Valid() bool {
	return m == ModelContragarantias || m == ModelInformeSocial
}
