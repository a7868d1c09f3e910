package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"
)

// ServiceAccount is an upstream service account record.
type ServiceAccount struct {
	ClientID    string `json:"clientId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"createdBy,omitempty"`
	Username    string `json:"username,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
}

// ITService fetches service accounts from the platform SSO service,
// authenticating with client credentials obtained via OIDC discovery.
type ITService struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewITService discovers the token endpoint from the OIDC issuer and builds
// an authenticated client.
func NewITService(ctx context.Context, baseURL, issuerURL, clientID, clientSecret string, logger *logrus.Logger) (*ITService, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
	}
	client := creds.Client(ctx)
	client.Timeout = 30 * time.Second

	return &ITService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

// LookupServiceAccounts lists the org's service accounts, optionally
// restricted to specific client IDs. Upstream failures pass through as
// StatusError.
func (s *ITService) LookupServiceAccounts(ctx context.Context, orgID string, clientIDs []string) ([]ServiceAccount, error) {
	target := s.baseURL + "/service_accounts/v1"
	if len(clientIDs) > 0 {
		query := make(url.Values, 1)
		for _, clientID := range clientIDs {
			query.Add("clientId", clientID)
		}
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build service account request: %w", err)
	}
	req.Header.Set("x-rh-org-id", orgID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach service account API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.WithField("status", resp.StatusCode).Warn("service account lookup failed")
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Errors: []ErrorDetail{{
				Detail: "Unexpected error when retrieving service accounts.",
				Status: fmt.Sprintf("%d", resp.StatusCode),
				Source: "IT service",
			}},
		}
	}

	var accounts []ServiceAccount
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("failed to decode service accounts: %w", err)
	}
	return accounts, nil
}
