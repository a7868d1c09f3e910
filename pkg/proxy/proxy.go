// Package proxy talks to the external principal directory and service
// account APIs on behalf of the RBAC service.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// User is a directory record for a user principal.
type User struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	OrgAdmin   bool   `json:"is_org_admin"`
	Active     bool   `json:"is_active"`
	ExternalID string `json:"external_source_id,omitempty"`
}

// Options shape a directory lookup.
type Options struct {
	// SortOrder is "asc" or "desc" by username.
	SortOrder string
	// UsernameOnly asks the directory to return bare usernames.
	UsernameOnly bool
	// AdminOnly restricts results to org admins.
	AdminOnly bool
	// PrincipalType is forwarded for directory-side filtering.
	PrincipalType string
	Limit         int
	Offset        int
}

// ErrorDetail is a single upstream error entry, passed through to API
// responses unchanged.
type ErrorDetail struct {
	Detail string `json:"detail"`
	Status string `json:"status"`
	Source string `json:"source"`
}

// StatusError carries a non-success upstream response.
type StatusError struct {
	StatusCode int
	Errors     []ErrorDetail
}

func (e *StatusError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("directory returned status %d: %s", e.StatusCode, e.Errors[0].Detail)
	}
	return fmt.Sprintf("directory returned status %d", e.StatusCode)
}

// Proxy is the HTTP client for the principal directory.
type Proxy struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// New creates a directory proxy.
func New(baseURL string, logger *logrus.Logger) *Proxy {
	return &Proxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type lookupRequest struct {
	Users []string `json:"users"`
}

type lookupResponse struct {
	UserCount int    `json:"userCount"`
	Users     []User `json:"users"`
}

// Lookup resolves usernames against the directory, preserving the
// directory's response order. A non-success upstream status is returned as
// a StatusError so callers can pass it through.
func (p *Proxy) Lookup(ctx context.Context, orgID string, usernames []string, opts Options) ([]User, error) {
	body, err := json.Marshal(lookupRequest{Users: usernames})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lookup request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/users?sort_order=%s", p.baseURL, sortOrder(opts.SortOrder))
	if opts.UsernameOnly {
		url += "&username_only=true"
	}
	if opts.AdminOnly {
		url += "&admin_only=true"
	}
	if opts.PrincipalType != "" {
		url += "&type=" + opts.PrincipalType
	}
	if opts.Limit > 0 {
		url += fmt.Sprintf("&limit=%d&offset=%d", opts.Limit, opts.Offset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rh-org-id", orgID)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return decoded.Users, nil
}

// UserExists reports whether a username is known to the directory and
// whether it is an org admin. Satisfies the resolver's Directory interface.
func (p *Proxy) UserExists(ctx context.Context, orgID, username string) (bool, bool, error) {
	users, err := p.Lookup(ctx, orgID, []string{username}, Options{})
	if err != nil {
		return false, false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return true, u.OrgAdmin, nil
		}
	}
	return false, false, nil
}

func (p *Proxy) statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var payload struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && len(payload.Errors) > 0 {
		se.Errors = payload.Errors
	} else {
		se.Errors = []ErrorDetail{{
			Detail: "Unexpected error.",
			Status: fmt.Sprintf("%d", resp.StatusCode),
			Source: "principal directory",
		}}
	}
	p.logger.WithField("status", resp.StatusCode).Warn("directory lookup failed")
	return se
}

func sortOrder(order string) string {
	if order == "desc" {
		return "desc"
	}
	return "asc"
}
