package contract

import "errors"

var (
	// ErrNotFound marks lookups of threads, brands, or channels that do not
	// exist. Returned as a typed result so callers can branch on it instead
	// of parsing messages.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument marks malformed tool arguments or request payloads.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamUnavailable marks a reasoning service or enrichment provider
	// that is unreachable or misbehaving.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPrecondition marks an internal contract breach, such as a zero fair
	// price handed to the negotiation evaluator. Not recoverable.
	ErrPrecondition = errors.New("precondition violation")
)

// CodePrecondition tags a structured tool error as a contract breach. Most
// tool failures fold back into the transcript as observations the model can
// react to; a precondition breach instead fails the whole run.
const CodePrecondition = "precondition"
