package email

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	study "github.com/goliatone/go-study"
)

func TestNewSelectsSenderByType(t *testing.T) {
	sender, err := New(study.EmailConfig{Type: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, sender)

	sender, err = New(study.EmailConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, sender)

	sender, err = New(study.EmailConfig{Type: "smtp", Host: "mail.example.com"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTP{}, sender)

	_, err = New(study.EmailConfig{Type: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestMockRecordsMessages(t *testing.T) {
	mock := NewMock(nil)

	require.NoError(t, mock.Send(context.Background(), "kay@example.edu", "Hello", "<p>hi</p>"))
	require.NoError(t, mock.Send(context.Background(), "lee@example.edu", "Again", "<p>yo</p>"))

	sent := mock.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "kay@example.edu", sent[0].To)
	assert.Equal(t, "Hello", sent[0].Subject)
	assert.NotEmpty(t, sent[0].ID)
	assert.NotEqual(t, sent[0].ID, sent[1].ID)
}

func TestBuildMessageIsHTMLMail(t *testing.T) {
	msg := buildMessage("study@example.edu", "kay@example.edu", "Log in", "<p>hello</p>")

	assert.Contains(t, msg, "From: study@example.edu\r\n")
	assert.Contains(t, msg, "To: kay@example.edu\r\n")
	assert.Contains(t, msg, "Subject: Log in\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"UTF-8\"\r\n")
	assert.True(t, strings.HasSuffix(msg, "<p>hello</p>\r\n"))
}

func TestRendererFillsLoginTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	body, err := renderer.RenderLoginMessage(study.LoginMessage{
		Title:     "Welcome back!",
		Subtitle:  "Click the button below.",
		Kind:      "login link",
		CTA:       "Login to your Study Dashboard",
		Expires:   "1 day",
		Link:      "https://study.example.edu/api/study/auth?token=abc&redirect=%2F",
		Email:     "kay@example.edu",
		LegalText: "because you requested a login link from the College Study",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Welcome back!")
	assert.Contains(t, body, "Login to your Study Dashboard")
	assert.Contains(t, body, "token=abc")
	assert.Contains(t, body, "kay@example.edu")
	assert.Contains(t, body, "expires 1 day")
}

func TestAzureSendSignsRequest(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender, err := NewAzure(study.EmailConfig{
		Type:        TypeAzure,
		FromAddress: "study@example.edu",
		Endpoint:    server.URL,
		AccessKey:   base64.StdEncoding.EncodeToString([]byte("shared-secret")),
	})
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "kay@example.edu", "Log in", "<p>hi</p>"))

	var msg azureMessage
	require.NoError(t, json.Unmarshal(gotBody, &msg))
	assert.Equal(t, "study@example.edu", msg.SenderAddress)
	assert.Equal(t, "kay@example.edu", msg.Recipients.To[0].Address)
	assert.Equal(t, "<p>hi</p>", msg.Content.HTML)

	hash := sha256.Sum256(gotBody)
	assert.Equal(t, base64.StdEncoding.EncodeToString(hash[:]), gotHeaders.Get("x-ms-content-sha256"))
	assert.NotEmpty(t, gotHeaders.Get("x-ms-date"))
	assert.True(t, strings.HasPrefix(gotHeaders.Get("Authorization"),
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="))
	assert.NotEmpty(t, gotHeaders.Get("Operation-Id"))
}

func TestAzureSendSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	sender, err := NewAzure(study.EmailConfig{
		Endpoint:  server.URL,
		AccessKey: base64.StdEncoding.EncodeToString([]byte("shared-secret")),
	})
	require.NoError(t, err)

	err = sender.Send(context.Background(), "kay@example.edu", "Log in", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
