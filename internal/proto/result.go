package proto

// Error codes used across every handler's reply.
const (
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeValidation   = 422
	CodeInternal     = 500
)

// Result is a handler's outcome: either Success(payload) or Failure(code,
// reason), a tagged variant in place of dynamic typing.
type Result struct {
	OK     bool
	Fields []KV
	Code   int
	Reason string
}

// Success builds an OK result carrying the given payload fields.
func Success(fields ...KV) Result {
	return Result{OK: true, Fields: fields}
}

// Fail builds a Failure result with the given numeric code and reason.
func Fail(code int, reason string) Result {
	return Result{Code: code, Reason: reason}
}

// BadRequest builds a 400 result.
func BadRequest(reason string) Result { return Fail(CodeBadRequest, reason) }

// Unauthorized builds a 401 result.
func Unauthorized(reason string) Result { return Fail(CodeUnauthorized, reason) }

// Forbidden builds a 403 result.
func Forbidden(reason string) Result { return Fail(CodeForbidden, reason) }

// NotFound builds a 404 result.
func NotFound(reason string) Result { return Fail(CodeNotFound, reason) }

// Conflict builds a 409 result.
func Conflict(reason string) Result { return Fail(CodeConflict, reason) }

// Validation builds a 422 result.
func Validation(reason string) Result { return Fail(CodeValidation, reason) }

// Internal builds a 500 result.
func Internal(reason string) Result { return Fail(CodeInternal, reason) }

// Line renders the result as the reply line for reqID (without CRLF).
func (r Result) Line(reqID string) string {
	if r.OK {
		return OKLine(reqID, r.Fields...)
	}
	return ErrLine(reqID, r.Code, r.Reason)
}
