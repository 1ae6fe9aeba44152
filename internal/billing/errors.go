package billing

import "errors"

var (
	// ErrInvalidSignature means the notification body was not signed by the
	// billing provider. The caller must reject with a client error so the
	// provider does not redeliver.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedPayload means the payload does not match the schema its
	// declared event kind implies. Not retryable; redelivery would fail the
	// same way.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrUnresolvedAccount means the provider customer could not be mapped to
	// an internal account. Retryable: the metadata linkage may land before
	// the provider's next redelivery.
	ErrUnresolvedAccount = errors.New("unresolved account")
)

// Retryable reports whether a failed delivery should be answered with a
// server error so the provider redelivers it. Signature and schema failures
// are terminal; everything else (unresolved accounts, store timeouts,
// transient lookup errors) is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformedPayload)
}
