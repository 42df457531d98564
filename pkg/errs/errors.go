package errs

import (
	"errors"
	"fmt"
)

// ValidationError indicates a missing or malformed required field.
// It is terminal: retrying cannot change the outcome.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Msg)
	}
	return "validation failed: " + e.Msg
}

// NotFoundError indicates no record exists for the given key.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// SignatureError indicates a gateway message failed its signature check,
// or an identifier embedded in a verified payload did not match configuration.
type SignatureError struct {
	Msg string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Msg
}

// DecryptionError indicates ciphertext could not be decrypted under any
// known scheme, or an authenticated payload failed its tag check.
type DecryptionError struct {
	Msg string
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Msg, e.Err)
	}
	return "decryption failed: " + e.Msg
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// StateConflictError indicates an operation that is invalid for the
// record's current status, e.g. refunding a non-completed payment.
type StateConflictError struct {
	Entity  string
	Current string
	Wanted  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s is %q, operation requires %q", e.Entity, e.Current, e.Wanted)
}

// QueueDeliveryError indicates a job exhausted its retry budget.
type QueueDeliveryError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *QueueDeliveryError) Error() string {
	return fmt.Sprintf("job %q failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *QueueDeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether an error is worth retrying. Business-rule
// violations are terminal; everything else (I/O, timeouts, unknown
// failures) is assumed transient. NotFoundError stays retryable on
// purpose: a gateway callback can race the create-payment job.
func Retryable(err error) bool {
	var ve *ValidationError
	var se *SignatureError
	var de *DecryptionError
	var ce *StateConflictError
	if errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &de) || errors.As(err, &ce) {
		return false
	}
	return true
}
