package features

import "errors"

// Sentinel errors for the encoding pipeline. Callers match them with errors.Is;
// the wrapped message names the field, column or label that triggered them.
var (
	// ErrUnknownOrdinalCategory is returned when an ordinal label is not in its scale.
	ErrUnknownOrdinalCategory = errors.New("unknown ordinal category")

	// ErrSchemaConflict is returned by NewAssembler when two encoding groups
	// can emit the same feature key.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrMissingFeature is returned by Assemble when a schema column has no value.
	ErrMissingFeature = errors.New("missing feature")

	// ErrInvalidPlan covers static plan defects other than key collisions.
	ErrInvalidPlan = errors.New("invalid assembly plan")

	// ErrInvalidUniverse is returned for malformed universes and scales.
	ErrInvalidUniverse = errors.New("invalid category universe")

	// ErrUnknownCategory is returned by a target encoder configured to reject unseen keys.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidArtifact is returned when an exported encoder or scaler cannot be used.
	ErrInvalidArtifact = errors.New("invalid artifact")
)
