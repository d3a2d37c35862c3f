package email

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

const azureAPIVersion = "2023-03-31"

// Azure delivers mail through the Azure Communication Services email API,
// signing each request with the shared access key.
type Azure struct {
	httpClient *http.Client
	endpoint   string
	accessKey  []byte
	from       string
	now        func() time.Time
}

func NewAzure(cfg study.EmailConfig) (*Azure, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" {
		return nil, errors.New("azure email requires endpoint and access_key", errors.CategoryValidation)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.AccessKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "azure access_key is not valid base64")
	}

	return &Azure{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		accessKey:  key,
		from:       cfg.FromAddress,
		now:        time.Now,
	}, nil
}

type azureMessage struct {
	SenderAddress string          `json:"senderAddress"`
	Recipients    azureRecipients `json:"recipients"`
	Content       azureContent    `json:"content"`
}

type azureRecipients struct {
	To []azureAddress `json:"to"`
}

type azureAddress struct {
	Address string `json:"address"`
}

type azureContent struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (a *Azure) Send(ctx context.Context, to, subject, htmlBody string) error {
	body, err := json.Marshal(azureMessage{
		SenderAddress: a.from,
		Recipients:    azureRecipients{To: []azureAddress{{Address: to}}},
		Content:       azureContent{Subject: subject, HTML: htmlBody},
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode azure email")
	}

	endpoint := fmt.Sprintf("%s/emails:send?api-version=%s", a.endpoint, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build azure request")
	}

	if err := a.sign(req, body); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Operation-Id", uuid.New().String())

	res, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "azure email request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return errors.New(
			fmt.Sprintf("azure email send failed: %d %s", res.StatusCode, strings.TrimSpace(string(detail))),
			errors.CategoryOperation,
		)
	}
	return nil
}

// sign applies the Communication Services HMAC-SHA256 scheme: the method,
// path with query, date, host, and body hash are covered by the signature.
func (a *Azure) sign(req *http.Request, body []byte) error {
	parsed, err := url.Parse(req.URL.String())
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "azure endpoint is not a valid URL")
	}

	contentHash := sha256.Sum256(body)
	encodedHash := base64.StdEncoding.EncodeToString(contentHash[:])
	date := a.now().UTC().Format(http.TimeFormat)

	pathAndQuery := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		pathAndQuery += "?" + parsed.RawQuery
	}

	stringToSign := strings.Join([]string{
		req.Method,
		pathAndQuery,
		date + ";" + parsed.Host + ";" + encodedHash,
	}, "\n")

	mac := hmac.New(sha256.New, a.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", encodedHash)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
	return nil
}
