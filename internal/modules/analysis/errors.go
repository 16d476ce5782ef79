package analysis

import (
	"errors"
	"fmt"
)

// Classification sentinels for failed engine calls. Branch with errors.Is;
// the concrete *UpstreamError carries the status and detail.
var (
	// ErrTimeout means the call exceeded its budget and was cancelled.
	ErrTimeout = errors.New("analysis engine call timed out")
	// ErrUpstream means the engine answered with a non-2xx status.
	ErrUpstream = errors.New("analysis engine returned an error")
	// ErrTransport means the engine could not be reached at all.
	ErrTransport = errors.New("analysis engine unreachable")
	// ErrDecode means the engine answered 2xx with an unusable body.
	ErrDecode = errors.New("analysis engine returned a malformed response")
)

// UpstreamError is a classified failure from the analysis engine. Status and
// Detail are only set for ErrUpstream, where they mirror the engine's own
// response so callers see it unchanged.
type UpstreamError struct {
	kind   error
	Op     string
	Status int
	Detail string
	cause  error
}

func (e *UpstreamError) Error() string {
	if e.kind == ErrUpstream {
		return fmt.Sprintf("%s: %v: status %d: %s", e.Op, e.kind, e.Status, e.Detail)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.kind, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.kind)
}

func (e *UpstreamError) Is(target error) bool { return target == e.kind }

func (e *UpstreamError) Unwrap() error { return e.cause }

func timeoutError(op string, cause error) *UpstreamError {
	return &UpstreamError{kind: ErrTimeout, Op: op, cause: cause}
}

func upstreamError(op string, status int, detail string) *UpstreamError {
	return &UpstreamError{kind: ErrUpstream, Op: op, Status: status, Detail: detail}
}

func transportError(op string, cause error) *UpstreamError {
	return &UpstreamError{kind: ErrTransport, Op: op, cause: cause}
}

func decodeError(op string, cause error) *UpstreamError {
	return &UpstreamError{kind: ErrDecode, Op: op, cause: cause}
}

// User-facing messages for failures the engine did not describe itself.
const (
	msgTimeout        = "analysis timed out, please try again"
	msgUnreachable    = "analysis engine is unavailable"
	msgBadEngineReply = "analysis engine returned an invalid response"
	msgEngineRejected = "analysis engine rejected the request"
)

// PublicMessage renders err the way handlers report it to callers. Engine
// error details pass through unchanged, including quota messages.
func PublicMessage(err error) string {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return err.Error()
	}
	switch {
	case errors.Is(ue, ErrTimeout):
		return msgTimeout
	case errors.Is(ue, ErrUpstream):
		if ue.Detail != "" {
			return ue.Detail
		}
		return msgEngineRejected
	case errors.Is(ue, ErrDecode):
		return msgBadEngineReply
	default:
		return msgUnreachable
	}
}
