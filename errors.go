package study

import (
	"github.com/goliatone/go-errors"
)

// ErrInvalidToken is the defensive fallthrough when decode exhausts an empty
// key list without recording an error. The key list invariant makes it
// unreachable in practice.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode("INVALID_TOKEN").
	WithCode(errors.CodeUnauthorized)

// ErrSignature is returned when a token fails verification under every
// configured secret key.
var ErrSignature = errors.New("token signature could not be verified", errors.CategoryAuth).
	WithTextCode("BAD_SIGNATURE").
	WithCode(errors.CodeUnauthorized)

// ErrUnsupportedAudience rejects auth-link requests for flows this service
// does not mint links for. Only the study realms are implemented.
var ErrUnsupportedAudience = errors.New("auth links are only issued for the study application", errors.CategoryBadInput).
	WithTextCode("UNSUPPORTED_AUDIENCE").
	WithCode(errors.CodeBadRequest)

// ErrBaseURLNotConfigured is raised when link generation or redirects need
// the public base URL and the configuration does not provide one.
var ErrBaseURLNotConfigured = errors.New("study public URL is not configured", errors.CategoryOperation).
	WithTextCode("BASE_URL_MISSING")

// ErrInstructorNotFound carries the caller-facing copy used across the auth
// flows when the subject has no record in the study database.
var ErrInstructorNotFound = errors.New(
	"We couldn't find you in the study database. Please contact the study administrator.",
	errors.CategoryNotFound,
).WithTextCode("INSTRUCTOR_NOT_FOUND").WithCode(errors.CodeNotFound)

// ErrAuthorizationDenied is the generic rejection for a permission
// expression that evaluated false.
var ErrAuthorizationDenied = errors.New("Missing required role", errors.CategoryAuthz).
	WithTextCode("MISSING_ROLE").
	WithCode(errors.CodeForbidden)

// TimeError reports a structurally valid token rejected by the manual time
// checks. It carries the subject so recovery flows can mint a fresh link for
// the same user.
type TimeError struct {
	UserID string
	Detail string
}

func (e *TimeError) Error() string {
	return e.Detail
}

func newExpiredError(userID string) *TimeError {
	return &TimeError{UserID: userID, Detail: "Token expired"}
}

func newNotYetValidError(userID string) *TimeError {
	return &TimeError{UserID: userID, Detail: "Token not valid yet"}
}

// AsTimeError unwraps err into a TimeError when the failure was exp/nbf
// based rather than cryptographic.
func AsTimeError(err error) (*TimeError, bool) {
	var te *TimeError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
