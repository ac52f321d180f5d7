package extract

import "errors"

// Classified extraction errors. All of them are fatal to the upload that
// triggered the extraction; the orchestrator surfaces them to the caller.
var (
	// ErrEmptyResponse means the model call yielded no candidates or empty
	// content.
	ErrEmptyResponse = errors.New("extract: empty model response")

	// ErrMalformedJSON means the (fence-stripped) model content did not
	// parse as a JSON object.
	ErrMalformedJSON = errors.New("extract: model response is not a JSON object")

	// ErrFailed covers every other extraction failure, with the underlying
	// cause attached to the message for logging.
	ErrFailed = errors.New("extract: extraction failed")
)
