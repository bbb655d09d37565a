package provider

import (
	"context"

	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
)

// Provider is the outbound Mad Mimi port.
type Provider interface {
	SendSingle(ctx context.Context, params domain.RequestParameters) (*ProviderResponse, error)
	AddAudienceListMembership(ctx context.Context, email string, listName string) (*ProviderResponse, error)
}

// ProviderResponse carries the raw body of a successful call.
type ProviderResponse struct {
	StatusCode int
	Body       string
}
