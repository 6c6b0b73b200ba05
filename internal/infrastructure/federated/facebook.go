// Package federated verifies third-party identity provider tokens.
package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

const (
	defaultGraphURL    = "https://graph.facebook.com"
	defaultHTTPTimeout = 10 * time.Second
)

// FacebookConfig configures the Graph API debug_token check.
type FacebookConfig struct {
	AppID      string
	AppSecret  string
	GraphURL   string
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// Facebook validates user access tokens with the Graph API debug_token
// endpoint using an app access token.
type Facebook struct {
	appID      string
	appSecret  string
	graphURL   string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewFacebook(cfg FacebookConfig) *Facebook {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	return &Facebook{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		graphURL:   graphURL,
		httpClient: client,
		log:        cfg.Log,
	}
}

func (f *Facebook) Name() string {
	return "facebook"
}

type debugTokenResponse struct {
	Data struct {
		AppID   string `json:"app_id"`
		UserID  string `json:"user_id"`
		IsValid bool   `json:"is_valid"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Verify reports whether token is a valid user token for this app issued to
// subjectID. Transport failures and provider-side 5xx/429 responses are
// reported as domain.ErrFederatedProviderUnavailable. Other 4xx responses
// reject the token; they usually mean the app credentials are wrong, so they
// are logged.
func (f *Facebook) Verify(ctx context.Context, token, subjectID string) (bool, error) {
	q := url.Values{}
	q.Set("input_token", token)
	q.Set("access_token", f.appID+"|"+f.appSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.graphURL+"/debug_token?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("facebook: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: facebook: %v", domain.ErrFederatedProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return false, fmt.Errorf("%w: facebook: status %d", domain.ErrFederatedProviderUnavailable, resp.StatusCode)
	}

	var body debugTokenResponse
	if resp.StatusCode != http.StatusOK {
		ev := f.log.Warn().Int("status", resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != nil {
			ev = ev.Str("provider_error", body.Error.Message).Int("provider_code", body.Error.Code)
		}
		ev.Msg("facebook debug_token refused the request; check FACEBOOK_APP_ID and FACEBOOK_APP_SECRET")
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: facebook: decode: %v", domain.ErrFederatedProviderUnavailable, err)
	}
	if body.Error != nil {
		return false, nil
	}

	d := body.Data
	if !d.IsValid || d.UserID != subjectID {
		return false, nil
	}
	if f.appID != "" && d.AppID != f.appID {
		return false, nil
	}
	return true, nil
}
