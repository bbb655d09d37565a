package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"github.com/kursadbilgin/mimi-dispatch/internal/mailer"
	"github.com/kursadbilgin/mimi-dispatch/internal/observability"
	"github.com/kursadbilgin/mimi-dispatch/internal/provider"
	"go.uber.org/zap"
)

// DeliveryMethod selects how Deliver hands off a composed message.
type DeliveryMethod string

const (
	// DeliveryMethodAPI sends through the Mad Mimi API.
	DeliveryMethodAPI DeliveryMethod = "api"
	// DeliveryMethodTest records messages in memory instead of sending.
	DeliveryMethodTest DeliveryMethod = "test"
)

func (m DeliveryMethod) IsValid() bool {
	return m == DeliveryMethodAPI || m == DeliveryMethodTest
}

type DeliveryOptions struct {
	Method            DeliveryMethod
	PerformDeliveries bool
}

// DeliveryResult describes what one Deliver call did.
type DeliveryResult struct {
	CorrelationID string
	// Responses holds raw provider bodies in recipient order.
	Responses []string
	Recorded  bool
	Skipped   bool
}

type DeliveryService struct {
	registry          *Registry
	builder           *mailer.Builder
	provider          provider.Provider
	logger            *zap.Logger
	metrics           *observability.Metrics
	method            DeliveryMethod
	performDeliveries bool
	now               func() time.Time
	newID             func() string

	mu         sync.Mutex
	deliveries []domain.OutgoingMessage
}

// NewDeliveryService wires the dispatcher. provider may be nil only for
// DeliveryMethodTest; an empty Method means DeliveryMethodAPI.
func NewDeliveryService(
	registry *Registry,
	builder *mailer.Builder,
	provider provider.Provider,
	opts DeliveryOptions,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("builder is required")
	}
	if opts.Method == "" {
		opts.Method = DeliveryMethodAPI
	}
	if !opts.Method.IsValid() {
		return nil, fmt.Errorf("invalid delivery method %q", opts.Method)
	}
	if opts.Method == DeliveryMethodAPI && provider == nil {
		return nil, fmt.Errorf("provider is required for api delivery")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		registry:          registry,
		builder:           builder,
		provider:          provider,
		logger:            logger,
		method:            opts.Method,
		performDeliveries: opts.PerformDeliveries,
		now:               time.Now,
		newID:             uuid.NewString,
	}, nil
}

// SetMetrics enables Prometheus collection. A nil metrics disables it.
func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Deliver composes the message registered under action and sends it. A list of
// recipients fans out into one single-send call per recipient, in order; the
// first failure stops the remaining calls.
func (s *DeliveryService) Deliver(ctx context.Context, action string, params Params) (*DeliveryResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	action = NormalizeAction(action)
	compose, ok := s.registry.Lookup(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	result := &DeliveryResult{CorrelationID: s.newID()}
	ctx = observability.WithCorrelationID(ctx, result.CorrelationID)
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("action", action))

	msg, err := compose(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to compose %s: %w", action, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: composer for %s returned no message", domain.ErrUsage, action)
	}

	if !s.performDeliveries {
		logger.Debug("deliveries disabled, skipping")
		s.metrics.IncDelivery(action, observability.OutcomeSkipped)
		result.Skipped = true
		return result, nil
	}

	if s.method == DeliveryMethodTest {
		s.record(*msg)
		logger.Info("delivery recorded", zap.String("recipients", redactRecipients(msg.Recipients)))
		s.metrics.IncDelivery(action, observability.OutcomeRecorded)
		result.Recorded = true
		return result, nil
	}

	targets := []domain.OutgoingMessage{*msg}
	if msg.Recipients.IsList() {
		recipients := msg.Recipients.Values()
		targets = make([]domain.OutgoingMessage, 0, len(recipients))
		for _, recipient := range recipients {
			targets = append(targets, msg.WithRecipient(recipient))
		}
	}

	for i := range targets {
		target := &targets[i]
		body, err := s.sendOne(ctx, target, action)
		if err != nil {
			logger.Error("delivery failed",
				zap.Int("recipientIndex", i),
				zap.Int("recipientCount", len(targets)),
				zap.String("recipient", observability.RedactRecipient(target.Recipients.String())),
				zap.Error(err),
			)
			s.metrics.IncDelivery(action, observability.OutcomeFailed)
			return nil, err
		}
		result.Responses = append(result.Responses, body)
	}

	logger.Info("delivery sent", zap.Int("recipientCount", len(targets)))
	s.metrics.IncDelivery(action, observability.OutcomeSent)
	return result, nil
}

func (s *DeliveryService) sendOne(ctx context.Context, msg *domain.OutgoingMessage, action string) (string, error) {
	params, err := s.builder.Build(msg, action)
	if err != nil {
		return "", err
	}

	start := s.now()
	resp, err := s.provider.SendSingle(ctx, params)
	s.metrics.ObserveProviderRequest(observability.EndpointSingleSend, responseStatus(resp, err), s.now().Sub(start))
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// AddAudienceListMembership adds an existing audience member to a list.
func (s *DeliveryService) AddAudienceListMembership(ctx context.Context, email string, listName string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.provider == nil {
		return "", fmt.Errorf("provider is not configured")
	}

	start := s.now()
	resp, err := s.provider.AddAudienceListMembership(ctx, email, listName)
	s.metrics.ObserveProviderRequest(observability.EndpointAudienceLists, responseStatus(resp, err), s.now().Sub(start))
	if err != nil {
		s.logger.Error("audience list membership failed",
			zap.String("list", listName),
			zap.String("email", observability.RedactRecipient(email)),
			zap.Error(err),
		)
		return "", err
	}

	s.logger.Info("audience list membership added",
		zap.String("list", listName),
		zap.String("email", observability.RedactRecipient(email)),
	)
	return resp.Body, nil
}

// Deliveries returns the messages recorded in test mode.
func (s *DeliveryService) Deliveries() []domain.OutgoingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.OutgoingMessage, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

func (s *DeliveryService) ClearDeliveries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = nil
}

func (s *DeliveryService) record(msg domain.OutgoingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, msg)
}

func redactRecipients(recipients domain.ListValue) string {
	values := recipients.Values()
	redacted := make([]string, len(values))
	for i, value := range values {
		redacted[i] = observability.RedactRecipient(value)
	}
	return strings.Join(redacted, ", ")
}

func responseStatus(resp *provider.ProviderResponse, err error) int {
	if err == nil && resp != nil {
		return resp.StatusCode
	}

	var providerErr *provider.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode
	}
	return 0
}
