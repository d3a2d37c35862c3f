package email

import (
	"embed"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer renders the transactional email bodies from the embedded
// templates. Implements study.MessageRenderer.
type Renderer struct {
	engine *django.Engine
}

func NewRenderer() (*Renderer, error) {
	engine := django.NewPathForwardingFileSystem(http.FS(templatesFS), "/templates", ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load email templates")
	}
	return &Renderer{engine: engine}, nil
}

func (r *Renderer) RenderLoginMessage(msg study.LoginMessage) (string, error) {
	var out strings.Builder
	err := r.engine.Render(&out, "login_link", map[string]any{
		"title":      msg.Title,
		"subtitle":   msg.Subtitle,
		"type":       msg.Kind,
		"cta":        msg.CTA,
		"underline":  msg.Underline,
		"expires":    msg.Expires,
		"link":       msg.Link,
		"email":      msg.Email,
		"legal_text": msg.LegalText,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render login email")
	}
	return out.String(), nil
}
