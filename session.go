package study

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// SessionCookieName is the HTTP-only cookie carrying the session token.
const SessionCookieName = "study_session"

// NoticeProfileMovedKey is the only notice flag currently sourced from the
// instructor record.
const NoticeProfileMovedKey = "notice.profile_moved.v1"

type SessionStatus string

const (
	SessionValid     SessionStatus = "valid"
	SessionAnonymous SessionStatus = "anonymous"
	SessionMissing   SessionStatus = "missing"
	SessionInvalid   SessionStatus = "invalid"
	SessionError     SessionStatus = "error"
)

// SessionState is the per-request resolution outcome. It is computed once
// before any handler runs and treated as read-only afterwards.
type SessionState struct {
	Status       SessionStatus       `json:"status"`
	Error        string              `json:"error,omitempty"`
	Instructor   *InstructorResponse `json:"instructor,omitempty"`
	Token        *SessionToken       `json:"token,omitempty"`
	FeatureFlags *FeatureFlags       `json:"feature_flags,omitempty"`
}

// Resolver turns the session cookie into a SessionState, enriching valid
// sessions with the instructor profile and feature flags.
type Resolver struct {
	codec     *Codec
	directory Directory
	logger    Logger
}

func NewResolver(codec *Codec, directory Directory, logger Logger) *Resolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &Resolver{codec: codec, directory: directory, logger: logger}
}

// Resolve never returns an error: every failure path lands in a terminal
// SessionState carrying a human-readable message. Route guards decide what
// to do with INVALID, MISSING, and ERROR.
func (r *Resolver) Resolve(ctx context.Context, cookie string, nowfn NowFunc) SessionState {
	if cookie == "" {
		return SessionState{Status: SessionMissing}
	}

	token, err := r.codec.DecodeSession(cookie, nowfn)
	if err != nil {
		if te, ok := AsTimeError(err); ok {
			return SessionState{Status: SessionInvalid, Error: te.Detail}
		}
		return SessionState{Status: SessionInvalid, Error: err.Error()}
	}

	instructor, err := r.directory.FindInstructor(ctx, token.Sub)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category == errors.CategoryNotFound {
			return SessionState{Status: SessionInvalid, Error: richErr.Message}
		}
		r.logger.Error("session profile lookup failed for %s: %v", token.Sub, err)
		return SessionState{Status: SessionError, Error: err.Error()}
	}

	return SessionState{
		Status:       SessionValid,
		Token:        token,
		Instructor:   NewInstructorResponse(instructor),
		FeatureFlags: snapshotFeatureFlags(instructor),
	}
}

// Middleware resolves the session cookie and attaches the state to the
// request before any route handler runs.
func (r *Resolver) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := r.Resolve(c.UserContext(), c.Cookies(SessionCookieName), NowFromCtx(c))
		setSession(c, &state)
		return c.Next()
	}
}

// snapshotFeatureFlags maps one profile field per flag; absent fields
// default to false.
func snapshotFeatureFlags(in *Instructor) *FeatureFlags {
	seen := false
	if in.ProfileNoticeSeen != nil {
		seen = *in.ProfileNoticeSeen
	}
	return &FeatureFlags{Flags: map[string]bool{
		NoticeProfileMovedKey: seen,
	}}
}
