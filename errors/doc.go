// Package errors provides standardized error handling patterns for heritagestreams components.
//
// # Overview
//
// Errors are sorted into three classes so callers can decide how to degrade
// without string matching: Transient (the condition may clear on a later call),
// Invalid (bad input, frames or configuration) and Fatal (stop processing).
//
// The relay client maps its error taxonomy onto these classes:
//
//   - ConnectionError: ErrConnectionFailed, ErrConnectionTimeout, ErrNotConnected (transient).
//     Logged by the relay pool; the affected relay contributes nothing to a query.
//   - ParseError: ErrParsingFailed, ErrEventIDInvalid (invalid). The offending frame or
//     event is dropped and the batch proceeds.
//   - ValidationError: ErrInvalidData (invalid). A default value is substituted or the row
//     is dropped; never fatal.
//   - AggregateUnreachable: ErrAllRelaysUnreachable (transient). The only condition that
//     rejects a query; the service facade presents it as temporarily unavailable.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Pool", "connect", "dial relay")
//	errors.WrapInvalid(err, "Adapter", "Cultures", "decode content")
//	errors.WrapFatal(err, "Runtime", "New", "build relay pool")
//
// The generic Wrap() preserves the original error's classification:
//
//	errors.Wrap(err, "Engine", "Query", "select relays")
//
// # Integration with errors.As/Is
//
// Classification is preserved through error chains:
//
//	wrapped := errors.Wrap(errors.ErrAllRelaysUnreachable, "Engine", "Query", "select relays")
//	if stderrors.Is(wrapped, errors.ErrAllRelaysUnreachable) {
//	    // present "temporarily unavailable"
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified as Transient.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
