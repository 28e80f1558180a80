package reconcile

import "github.com/rotisserie/eris"

// Sentinel errors returned by ingestion. Callers match them with errors.Is
// and decide whether to log, re-fetch the source message, or drop.
var (
	// ErrInvalidAmount flags a contradictory outcome: a final bid is
	// reported but the property is marked unsold. The record is rejected
	// and the row left unmodified.
	ErrInvalidAmount = eris.New("reconcile: final bid reported for unsold property")

	// ErrUnknownProperty is returned in strict mode when an outcome
	// references a property no listing has been ingested for.
	ErrUnknownProperty = eris.New("reconcile: outcome references unknown property")

	// ErrEmptyPropertyID flags a record with no property key.
	ErrEmptyPropertyID = eris.New("reconcile: empty property id")

	// ErrInvalidBuyer flags an outcome whose sold_to value is not a known
	// buyer type. The record is rejected and the row left unmodified.
	ErrInvalidBuyer = eris.New("reconcile: unknown buyer type")
)
