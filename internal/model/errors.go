package model

import "github.com/rotisserie/eris"

// Pipeline error taxonomy. Fatal errors abort the request; degraded
// conditions are recorded on the result and never block delivery.
var (
	// ErrContentUnavailable means the website could not be fetched at all.
	ErrContentUnavailable = eris.New("content unavailable")

	// ErrExtractionFailed means every phase-1 extractor failed; there is
	// nothing to synthesize from.
	ErrExtractionFailed = eris.New("extraction failed")

	// ErrModelUnavailable is surfaced by the router only after its tier
	// fallback is exhausted.
	ErrModelUnavailable = eris.New("model unavailable")
)
