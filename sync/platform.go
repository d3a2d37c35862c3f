// Package sync runs the background jobs that push pending study records
// into the learning platform: class creation, student enrollment, external
// login aliases, and automation-account cleanup.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// PlatformClient talks to the platform's JSON API as the automation
// account, authenticated by its session cookie.
type PlatformClient struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
}

func NewPlatformClient(baseURL, cookie string) *PlatformClient {
	return &PlatformClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookie:     cookie,
	}
}

type Institution struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Class struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

// ClassRoles mirrors the platform's per-class role triple.
type ClassRoles struct {
	Admin   bool `json:"admin"`
	Teacher bool `json:"teacher"`
	Student bool `json:"student"`
}

type userRoleRequest struct {
	Email string     `json:"email"`
	Roles ClassRoles `json:"roles"`
}

type addUsersRequest struct {
	Roles  []userRoleRequest `json:"roles"`
	Silent bool              `json:"silent"`
}

type userResult struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

func (p *PlatformClient) ListInstitutions(ctx context.Context) ([]Institution, error) {
	var out struct {
		Institutions []Institution `json:"institutions"`
	}
	if err := p.do(ctx, http.MethodGet, "/api/v1/institutions", nil, &out); err != nil {
		return nil, err
	}
	return out.Institutions, nil
}

func (p *PlatformClient) CreateInstitution(ctx context.Context, name string) (*Institution, error) {
	var out Institution
	err := p.do(ctx, http.MethodPost, "/api/v1/institution", map[string]string{"name": name}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PlatformClient) CreateClass(ctx context.Context, institutionID int, name, term string) (*Class, error) {
	var out Class
	path := fmt.Sprintf("/api/v1/institution/%d/class", institutionID)
	err := p.do(ctx, http.MethodPost, path, map[string]string{"name": name, "term": term}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddUserToClass enrolls a single address with the given roles. The
// platform API is batch shaped, so exactly one result is expected back and
// anything else is treated as a failure.
func (p *PlatformClient) AddUserToClass(ctx context.Context, classID int, email string, roles ClassRoles, silent bool) error {
	body := addUsersRequest{
		Roles:  []userRoleRequest{{Email: email, Roles: roles}},
		Silent: silent,
	}

	var out struct {
		Results []userResult `json:"results"`
	}
	path := fmt.Sprintf("/api/v1/class/%d/user", classID)
	if err := p.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return err
	}

	if len(out.Results) != 1 {
		return errors.New(
			fmt.Sprintf("expected one enrollment result, got %d", len(out.Results)),
			errors.CategoryOperation,
		)
	}
	if out.Results[0].Error != "" {
		return errors.New(
			fmt.Sprintf("failed to add %q to class %d: %s", email, classID, out.Results[0].Error),
			errors.CategoryOperation,
		)
	}
	return nil
}

// Me returns the automation account itself.
func (p *PlatformClient) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := p.do(ctx, http.MethodGet, "/api/v1/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (p *PlatformClient) DeleteUserFromClass(ctx context.Context, classID, userID int) error {
	path := fmt.Sprintf("/api/v1/class/%d/user/%d", classID, userID)
	return p.do(ctx, http.MethodDelete, path, nil, nil)
}

func (p *PlatformClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var out User
	path := "/api/v1/user?email=" + url.QueryEscape(email)
	if err := p.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddLoginEmail registers an extra login address for an existing user.
func (p *PlatformClient) AddLoginEmail(ctx context.Context, userID int, email string) error {
	path := fmt.Sprintf("/api/v1/user/%d/email?email=%s", userID, url.QueryEscape(email))
	return p.do(ctx, http.MethodPost, path, nil, nil)
}

func (p *PlatformClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode platform request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build platform request")
	}
	req.AddCookie(&http.Cookie{Name: "session", Value: p.cookie})
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "platform request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return errors.New(
			fmt.Sprintf("platform %s %s failed: %d %s", method, path, res.StatusCode, strings.TrimSpace(string(detail))),
			errors.CategoryOperation,
		)
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode platform response")
	}
	return nil
}
