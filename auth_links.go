package study

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LinkAudience selects the realm an auth link is minted for.
type LinkAudience string

const (
	// AudiencePlatform is the base realm. This service only mints links
	// for the study flows, so requesting it fails by design.
	AudiencePlatform LinkAudience = "platform"
	// AudienceStudy is the ordinary instructor login flow.
	AudienceStudy LinkAudience = "study"
	// AudienceStudyAdmin is the delegated "login as" flow. The subject is
	// the composite "<instructorID>:<adminID>"; consumers split it.
	AudienceStudyAdmin LinkAudience = "study-admin"
)

// Links mints magic-link URLs and session redirects. baseURL is the public
// study URL from configuration; link generation fails when it is unset.
type Links struct {
	codec   *Codec
	baseURL string
}

func NewLinks(codec *Codec, baseURL string) *Links {
	return &Links{codec: codec, baseURL: baseURL}
}

// StudyURL resolves path against the configured public base URL.
func (l *Links) StudyURL(path string) (string, error) {
	if l.baseURL == "" {
		return "", ErrBaseURLNotConfigured
	}
	if path == "" {
		return l.baseURL, nil
	}
	return strings.TrimRight(l.baseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// GenerateAuthLink encodes a time-bounded token for userID and embeds it in
// the auth endpoint URL for the requested audience.
func (l *Links) GenerateAuthLink(userID, redirect string, ttl int, nowfn NowFunc, audience LinkAudience) (string, error) {
	token, err := l.codec.Encode(userID, ttl, nowfn)
	if err != nil {
		return "", err
	}

	query := "?token=" + token + "&redirect=" + url.QueryEscape(redirect)

	switch audience {
	case AudienceStudy:
		return l.StudyURL("/api/study/auth" + query)
	case AudienceStudyAdmin:
		return l.StudyURL("/api/study/auth/admin" + query)
	default:
		return "", ErrUnsupportedAudience
	}
}

// RedirectWithSession encodes a session token for userID, sets the session
// cookie with max-age equal to the token lifetime, and 303-redirects to
// destination. Relative destinations resolve against the base URL.
func (l *Links) RedirectWithSession(c *fiber.Ctx, destination, userID string, ttl int, nowfn NowFunc) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	token, err := l.codec.Encode(userID, ttl, nowfn)
	if err != nil {
		return err
	}

	dest := destination
	if strings.HasPrefix(destination, "/") {
		if dest, err = l.StudyURL(destination); err != nil {
			return err
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		MaxAge:   ttl,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	return c.Redirect(dest, fiber.StatusSeeOther)
}
