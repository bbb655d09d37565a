package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

// Delivery methods.
const (
	DeliveryMethodAPI  = "api"
	DeliveryMethodTest = "test"
)

type Config struct {
	Username              string `env:"MIMI_USERNAME,required=true"`
	APIKey                string `env:"MIMI_API_KEY,required=true"`
	SingleSendURL         string `env:"MIMI_SINGLE_SEND_URL,default=https://madmimi.com/mailer"`
	AudienceListsURL      string `env:"MIMI_AUDIENCE_LISTS_URL,default=http://madmimi.com/audience_lists"`
	DefaultFrom           string `env:"MIMI_DEFAULT_FROM"`
	DefaultBCC            string `env:"MIMI_DEFAULT_BCC"`
	DefaultBody           string `env:"MIMI_DEFAULT_BODY"`
	DeliveryMethod        string `env:"MIMI_DELIVERY_METHOD,default=api"`
	PerformDeliveries     bool   `env:"MIMI_PERFORM_DELIVERIES,default=true"`
	RequestTimeoutSeconds int    `env:"MIMI_REQUEST_TIMEOUT_SECONDS,default=10"`
	PushgatewayURL        string `env:"MIMI_PUSHGATEWAY_URL"`
	LogLevel              string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("failed to load config: MIMI_USERNAME and MIMI_API_KEY must not be blank")
	}
	cfg.DeliveryMethod = strings.ToLower(strings.TrimSpace(cfg.DeliveryMethod))
	if cfg.DeliveryMethod != DeliveryMethodAPI && cfg.DeliveryMethod != DeliveryMethodTest {
		return nil, fmt.Errorf("failed to load config: invalid delivery method %q", cfg.DeliveryMethod)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("failed to load config: request timeout must be positive")
	}
	cfg.PushgatewayURL = strings.TrimSpace(cfg.PushgatewayURL)
	if cfg.PushgatewayURL != "" {
		if _, err := url.ParseRequestURI(cfg.PushgatewayURL); err != nil {
			return nil, fmt.Errorf("failed to load config: invalid MIMI_PUSHGATEWAY_URL: %w", err)
		}
	}
	return &cfg, nil
}

func (c *Config) Credentials() domain.Credentials {
	return domain.Credentials{
		Username: c.Username,
		APIKey:   c.APIKey,
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Defaults builds the fallback bcc, from and body fields. MIMI_DEFAULT_BCC
// is a comma-separated list; MIMI_DEFAULT_BODY is a YAML mapping.
func (c *Config) Defaults() (domain.Defaults, error) {
	defaults := domain.Defaults{
		BCC:  ParseAddressList(c.DefaultBCC),
		From: strings.TrimSpace(c.DefaultFrom),
	}

	if strings.TrimSpace(c.DefaultBody) != "" {
		var body map[string]any
		if err := yaml.Unmarshal([]byte(c.DefaultBody), &body); err != nil {
			return domain.Defaults{}, fmt.Errorf("invalid MIMI_DEFAULT_BODY: %w", err)
		}
		defaults.Body = body
	}

	return defaults, nil
}

// ParseAddressList turns "a@x.com" into a single value and "a@x.com, b@x.com"
// into a list. Blank input is absent.
func ParseAddressList(raw string) domain.ListValue {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.ListValue{}
	}
	if !strings.Contains(trimmed, ",") {
		return domain.Single(trimmed)
	}

	parts := strings.Split(trimmed, ",")
	addresses := make([]string, 0, len(parts))
	for _, part := range parts {
		if address := strings.TrimSpace(part); address != "" {
			addresses = append(addresses, address)
		}
	}
	return domain.List(addresses...)
}
