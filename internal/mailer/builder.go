// Package mailer maps outgoing messages onto Mad Mimi single-send parameters.
package mailer

import (
	"fmt"
	"maps"
	"strings"

	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

// ActionPrefix marks provider-routed delivery actions. The remainder of the
// action name is the default promotion name.
const ActionPrefix = "mimi_"

// Form keys understood by the single-send endpoint.
const (
	ParamUsername      = "username"
	ParamAPIKey        = "api_key"
	ParamPromotionName = "promotion_name"
	ParamRecipients    = "recipients"
	ParamSubject       = "subject"
	ParamBCC           = "bcc"
	ParamFrom          = "from"
	ParamHidden        = "hidden"
	ParamUnconfirmed   = "unconfirmed"
	ParamRawPlainText  = "raw_plain_text"
	ParamRawHTML       = "raw_html"
	ParamBody          = "body"
)

type Builder struct {
	credentials domain.Credentials
	defaults    domain.Defaults
}

func NewBuilder(credentials domain.Credentials, defaults domain.Defaults) *Builder {
	return &Builder{
		credentials: credentials,
		defaults:    defaults,
	}
}

// PromotionName returns the default promotion for an action.
func PromotionName(action string) string {
	return strings.TrimPrefix(action, ActionPrefix)
}

// Build resolves msg into request parameters for the single-send endpoint.
func (b *Builder) Build(msg *domain.OutgoingMessage, action string) (domain.RequestParameters, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	recipients, _ := msg.Recipients.Serialize()

	promotion := PromotionName(action)
	if msg.PromotionName != nil {
		promotion = *msg.PromotionName
	}

	params := domain.RequestParameters{
		ParamUsername:      b.credentials.Username,
		ParamAPIKey:        b.credentials.APIKey,
		ParamPromotionName: promotion,
		ParamRecipients:    recipients,
		ParamSubject:       msg.Subject,
	}

	bcc := msg.BCC
	if bcc.IsAbsent() {
		bcc = b.defaults.BCC
	}
	bccValue, ok := bcc.Serialize()
	params.SetIf(ParamBCC, bccValue, ok)

	from := b.defaults.From
	if msg.From != nil {
		from = *msg.From
	}
	params.SetIf(ParamFrom, from, from != "")

	hidden, ok := msg.Hidden.Serialize()
	params.SetIf(ParamHidden, hidden, ok)

	if msg.Unconfirmed {
		params[ParamUnconfirmed] = "1"
	}

	if msg.UseCustomTemplate {
		if err := b.templatedBody(msg.Body, params); err != nil {
			return nil, err
		}
		return params, nil
	}

	body, err := b.rawBody(msg.Body)
	if err != nil {
		return nil, err
	}
	params[ParamBody] = body

	return params, nil
}

func (b *Builder) templatedBody(body domain.Body, params domain.RequestParameters) error {
	if !body.HasParts() {
		if err := ValidateBeacon(body.Content); err != nil {
			return err
		}
		params[ParamRawHTML] = body.Content
		return nil
	}

	if plain, ok := body.Part(domain.ContentTypeTextPlain); ok {
		params[ParamRawPlainText] = plain.Content
	}
	if html, ok := body.Part(domain.ContentTypeTextHTML); ok {
		if err := ValidateBeacon(html.Content); err != nil {
			return err
		}
		params[ParamRawHTML] = html.Content
	}
	return nil
}

// rawBody merges default body fields with the message's own and renders the
// result as YAML. Message fields win on collision.
func (b *Builder) rawBody(body domain.Body) (string, error) {
	merged := make(map[string]any, len(b.defaults.Body)+len(body.Fields))
	maps.Copy(merged, b.defaults.Body)
	maps.Copy(merged, body.Fields)

	out, err := yaml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to serialize body: %w", err)
	}
	return string(out), nil
}
