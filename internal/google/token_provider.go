package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sautiksau/bookingsync/internal/instrumentation"
	"github.com/sautiksau/bookingsync/internal/logging"
)

const (
	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	defaultExchangeTimeout = 15 * time.Second
)

// CalendarScopes are requested for every token.
var CalendarScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
}

var (
	// ErrNotConfigured means the service account email or key is missing.
	ErrNotConfigured = errors.New("google: service account credentials not configured")

	// ErrTokenRejected means the token endpoint refused the assertion.
	ErrTokenRejected = errors.New("google: token exchange rejected")
)

// TokenSource yields a fresh access token, or nil when not connected.
type TokenSource interface {
	AccessToken(ctx context.Context) (*oauth2.Token, error)
}

// ServiceAccountConfig configures a ServiceAccountTokenProvider.
type ServiceAccountConfig struct {
	Email string

	// Signer signs assertions. When nil, PrivateKey is parsed into an RSASigner.
	Signer     Signer
	PrivateKey string

	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
	Scopes   []string

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	Now        func() time.Time
}

// ServiceAccountTokenProvider exchanges a signed assertion for an access
// token on every call.
type ServiceAccountTokenProvider struct {
	email    string
	signer   Signer
	tokenURL string
	scopes   []string

	client  *http.Client
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time

	// keyErr is set when a configured private key could not be parsed.
	keyErr error
}

// NewServiceAccountTokenProvider creates a provider. Missing or unparsable
// credentials do not fail construction; AccessToken then reports absent.
func NewServiceAccountTokenProvider(cfg ServiceAccountConfig) *ServiceAccountTokenProvider {
	p := &ServiceAccountTokenProvider{
		email:    strings.TrimSpace(cfg.Email),
		signer:   cfg.Signer,
		tokenURL: cfg.TokenURL,
		scopes:   cfg.Scopes,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if p.tokenURL == "" {
		p.tokenURL = DefaultTokenURL
	}
	if len(p.scopes) == 0 {
		p.scopes = CalendarScopes
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: defaultExchangeTimeout}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = logging.WithService(p.logger, "google-auth")
	if p.now == nil {
		p.now = time.Now
	}

	if p.signer == nil && strings.TrimSpace(cfg.PrivateKey) != "" {
		signer, err := NewRSASigner(cfg.PrivateKey)
		if err != nil {
			p.keyErr = err
		} else {
			p.signer = signer
		}
	}
	return p
}

// Configured reports whether an account email and a usable signer exist.
func (p *ServiceAccountTokenProvider) Configured() bool {
	return p.email != "" && p.signer != nil
}

// Email returns the service account email.
func (p *ServiceAccountTokenProvider) Email() string {
	return p.email
}

// AccessToken performs a fresh exchange. It returns (nil, nil) when the
// provider is unconfigured, the exchange is rejected or the endpoint is
// unreachable. Only a cancelled ctx is returned as an error.
func (p *ServiceAccountTokenProvider) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, "oauth2", instrumentation.OperationToken)
	defer span.End()

	token, err := p.exchange(ctx)
	switch {
	case err == nil:
		p.metrics.RecordTokenExchange(ctx, instrumentation.TokenResultSuccess)
		instrumentation.SetSpanSuccess(span)
		return token, nil

	case errors.Is(err, ErrNotConfigured):
		p.metrics.RecordTokenExchange(ctx, instrumentation.TokenResultNotConfigured)
		attrs := []any{logging.Status(logging.StatusSkipped)}
		if p.keyErr != nil {
			attrs = append(attrs, logging.Err(p.keyErr))
		}
		p.logger.Warn("service account credentials not configured", attrs...)

	case errors.Is(err, ErrTokenRejected):
		p.metrics.RecordTokenExchange(ctx, instrumentation.TokenResultRejected)
		p.logger.Error("token exchange rejected", logging.Err(err))

	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			instrumentation.SetSpanError(span, ctxErr)
			return nil, ctxErr
		}
		p.metrics.RecordTokenExchange(ctx, instrumentation.TokenResultUnavailable)
		p.logger.Error("token endpoint unavailable", logging.Err(err))
	}

	instrumentation.SetSpanError(span, err)
	return nil, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *ServiceAccountTokenProvider) exchange(ctx context.Context) (*oauth2.Token, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	now := p.now()
	assertion, err := buildAssertion(p.signer, p.email, p.tokenURL, p.scopes, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrTokenRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tr.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrTokenRejected, tr.Error, tr.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: status %d without access token", ErrTokenRejected, resp.StatusCode)
	}

	token := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
	}
	if tr.ExpiresIn > 0 {
		token.Expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	p.logger.Debug("access token issued",
		slog.String("token", logging.SanitizeToken(tr.AccessToken)),
		slog.Time("expiry", token.Expiry))
	return token, nil
}
