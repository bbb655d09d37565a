package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
)

const (
	DefaultSingleSendURL    = "https://madmimi.com/mailer"
	DefaultAudienceListsURL = "http://madmimi.com/audience_lists"

	defaultRequestTimeout = 10 * time.Second
	securePort            = "443"
)

// Options configures a MadMimiProvider. Empty URLs fall back to the public
// Mad Mimi endpoints. TLS follows the URL scheme: https endpoints, which
// default to port 443, use TLS and http endpoints do not. An http URL that
// names port 443 is rejected.
type Options struct {
	Credentials      domain.Credentials
	SingleSendURL    string
	AudienceListsURL string
	Timeout          time.Duration
}

// MadMimiProvider posts form-encoded requests to the Mad Mimi API.
type MadMimiProvider struct {
	client           *resty.Client
	credentials      domain.Credentials
	singleSendURL    string
	audienceListsURL string
}

func NewMadMimiProvider(opts Options) (*MadMimiProvider, error) {
	client := resty.New()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	client.SetTimeout(timeout)

	return NewMadMimiProviderWithClient(opts, client)
}

func NewMadMimiProviderWithClient(opts Options, client *resty.Client) (*MadMimiProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	singleSendURL, err := endpointOrDefault(opts.SingleSendURL, DefaultSingleSendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid single-send url: %w", err)
	}
	audienceListsURL, err := endpointOrDefault(opts.AudienceListsURL, DefaultAudienceListsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audience lists url: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRequestTimeout)
	}
	// Mad Mimi calls are one-shot: no retries and no pooled connections.
	client.SetRetryCount(0)
	client.SetCloseConnection(true)

	return &MadMimiProvider{
		client:           client,
		credentials:      opts.Credentials,
		singleSendURL:    singleSendURL,
		audienceListsURL: strings.TrimRight(audienceListsURL, "/"),
	}, nil
}

// SendSingle posts params to the single-send endpoint.
func (p *MadMimiProvider) SendSingle(ctx context.Context, params domain.RequestParameters) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	return p.post(ctx, p.singleSendURL, params)
}

// AddAudienceListMembership adds an existing audience member to listName.
func (p *MadMimiProvider) AddAudienceListMembership(ctx context.Context, email string, listName string) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrUsage)
	}
	if strings.TrimSpace(listName) == "" {
		return nil, fmt.Errorf("%w: list name is required", domain.ErrUsage)
	}

	return p.post(ctx, p.AudienceListURL(listName), domain.RequestParameters{
		"username": p.credentials.Username,
		"api_key":  p.credentials.APIKey,
		"email":    email,
	})
}

// AudienceListURL returns the membership endpoint for listName.
func (p *MadMimiProvider) AudienceListURL(listName string) string {
	return p.audienceListsURL + "/" + url.PathEscape(listName) + "/add"
}

func (p *MadMimiProvider) post(ctx context.Context, endpoint string, params domain.RequestParameters) (*ProviderResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetFormData(params).
		Post(endpoint)
	if err != nil {
		return nil, err
	}

	statusCode := response.StatusCode()
	body := string(response.Body())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       body,
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Status:     statusText(statusCode, response.Status()),
		Body:       body,
	}
}

func endpointOrDefault(endpoint string, fallback string) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = fallback
	}
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "http" && parsed.Port() == securePort {
		return "", fmt.Errorf("%q targets port %s over plain http; use https", trimmed, securePort)
	}
	return trimmed, nil
}
