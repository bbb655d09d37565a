package mailer

import (
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

func strPtr(s string) *string { return &s }

func newTestBuilder(defaults domain.Defaults) *Builder {
	return NewBuilder(domain.Credentials{Username: "mimi-user", APIKey: "secret-key"}, defaults)
}

func TestBuildMapsMessageFields(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(domain.Defaults{})
	msg := &domain.OutgoingMessage{
		Recipients:    domain.List("a@x.com", "b@x.com"),
		BCC:           domain.Single("audit@x.com"),
		Hidden:        domain.List("tag-1", "tag-2"),
		From:          strPtr("news@x.com"),
		PromotionName: strPtr("spring_sale"),
		Subject:       "Spring is here",
	}

	params, err := b.Build(msg, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}

	want := map[string]string{
		ParamUsername:      "mimi-user",
		ParamAPIKey:        "secret-key",
		ParamPromotionName: "spring_sale",
		ParamRecipients:    "a@x.com, b@x.com",
		ParamSubject:       "Spring is here",
		ParamBCC:           "audit@x.com",
		ParamFrom:          "news@x.com",
		ParamHidden:        "tag-1, tag-2",
	}
	for key, value := range want {
		if got := params[key]; got != value {
			t.Fatalf("params[%q] = %q, want %q", key, got, value)
		}
	}
	if _, ok := params[ParamUnconfirmed]; ok {
		t.Fatal("unconfirmed should be omitted when the flag is false")
	}
}

func TestBuildPromotionNameDefaultsToAction(t *testing.T) {
	t.Parallel()

	params, err := newTestBuilder(domain.Defaults{}).Build(&domain.OutgoingMessage{
		Recipients: domain.Single("a@x.com"),
	}, "mimi_weekly_digest")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	if got := params[ParamPromotionName]; got != "weekly_digest" {
		t.Fatalf("promotion_name = %q, want weekly_digest", got)
	}
}

func TestBuildFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(domain.Defaults{
		BCC:  domain.List("ops@x.com", "log@x.com"),
		From: "default@x.com",
	})

	params, err := b.Build(&domain.OutgoingMessage{Recipients: domain.Single("a@x.com")}, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	if got := params[ParamBCC]; got != "ops@x.com, log@x.com" {
		t.Fatalf("bcc = %q", got)
	}
	if got := params[ParamFrom]; got != "default@x.com" {
		t.Fatalf("from = %q", got)
	}
	if _, ok := params[ParamHidden]; ok {
		t.Fatal("hidden should be omitted when absent")
	}
}

func TestBuildOmitsAbsentOptionalFields(t *testing.T) {
	t.Parallel()

	params, err := newTestBuilder(domain.Defaults{}).Build(&domain.OutgoingMessage{
		Recipients: domain.Single("a@x.com"),
	}, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	for _, key := range []string{ParamBCC, ParamFrom, ParamHidden, ParamUnconfirmed, ParamRawHTML, ParamRawPlainText} {
		if _, ok := params[key]; ok {
			t.Fatalf("params[%q] should be omitted", key)
		}
	}
}

func TestBuildUnconfirmed(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(domain.Defaults{})

	for _, flag := range []bool{true, false} {
		params, err := b.Build(&domain.OutgoingMessage{
			Recipients:  domain.Single("a@x.com"),
			Unconfirmed: flag,
		}, "mimi_welcome")
		if err != nil {
			t.Fatalf("Build() unexpected error = %v", err)
		}

		value, ok := params[ParamUnconfirmed]
		if flag && value != "1" {
			t.Fatalf("unconfirmed = %q, want \"1\"", value)
		}
		if !flag && ok {
			t.Fatalf("unconfirmed should be absent, got %q", value)
		}
	}
}

func TestBuildRequiresRecipients(t *testing.T) {
	t.Parallel()

	_, err := newTestBuilder(domain.Defaults{}).Build(&domain.OutgoingMessage{Subject: "no one"}, "mimi_welcome")
	if !errors.Is(err, domain.ErrUsage) {
		t.Fatalf("Build() error = %v, want ErrUsage", err)
	}
}

func TestBuildTemplatedParts(t *testing.T) {
	t.Parallel()

	msg := &domain.OutgoingMessage{
		Recipients:        domain.Single("a@x.com"),
		UseCustomTemplate: true,
		Body: domain.Body{Parts: []domain.Part{
			{ContentType: "text/plain", Content: "plain copy"},
			{ContentType: "text/html; charset=UTF-8", Content: "<p>hi</p>[[tracking_beacon]]"},
		}},
	}

	params, err := newTestBuilder(domain.Defaults{}).Build(msg, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	if got := params[ParamRawPlainText]; got != "plain copy" {
		t.Fatalf("raw_plain_text = %q", got)
	}
	if got := params[ParamRawHTML]; got != "<p>hi</p>[[tracking_beacon]]" {
		t.Fatalf("raw_html = %q", got)
	}
	if _, ok := params[ParamBody]; ok {
		t.Fatal("body should not be set in templated mode")
	}
}

func TestBuildTemplatedPartsRequireBeacon(t *testing.T) {
	t.Parallel()

	msg := &domain.OutgoingMessage{
		Recipients:        domain.Single("a@x.com"),
		UseCustomTemplate: true,
		Body: domain.Body{Parts: []domain.Part{
			{ContentType: "text/plain", Content: "plain copy"},
			{ContentType: "text/html", Content: "<p>no beacon</p>"},
		}},
	}

	_, err := newTestBuilder(domain.Defaults{}).Build(msg, "mimi_welcome")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Build() error = %v, want ErrValidation", err)
	}
}

func TestBuildTemplatedSingleBody(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(domain.Defaults{})

	params, err := b.Build(&domain.OutgoingMessage{
		Recipients:        domain.Single("a@x.com"),
		UseCustomTemplate: true,
		Body:              domain.Body{Content: "<p>hello</p>[[peek_image]]"},
	}, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	if got := params[ParamRawHTML]; got != "<p>hello</p>[[peek_image]]" {
		t.Fatalf("raw_html = %q", got)
	}

	_, err = b.Build(&domain.OutgoingMessage{
		Recipients:        domain.Single("a@x.com"),
		UseCustomTemplate: true,
		Body:              domain.Body{Content: "<p>hello</p>"},
	}, "mimi_welcome")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Build() error = %v, want ErrValidation", err)
	}
}

func TestBuildRawBodyMergesDefaults(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(domain.Defaults{Body: map[string]any{
		"greeting":  "hi",
		"signature": "The Team",
	}})

	params, err := b.Build(&domain.OutgoingMessage{
		Recipients: domain.Single("a@x.com"),
		Body: domain.Body{Fields: map[string]any{
			"name":      "Bob",
			"signature": "Alice",
		}},
	}, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}

	var decoded map[string]string
	if err := yaml.Unmarshal([]byte(params[ParamBody]), &decoded); err != nil {
		t.Fatalf("body is not valid YAML: %v", err)
	}

	want := map[string]string{"greeting": "hi", "name": "Bob", "signature": "Alice"}
	if len(decoded) != len(want) {
		t.Fatalf("decoded body = %v, want %v", decoded, want)
	}
	for key, value := range want {
		if decoded[key] != value {
			t.Fatalf("body[%q] = %q, want %q", key, decoded[key], value)
		}
	}
}

func TestBuildRawBodySkipsBeaconCheck(t *testing.T) {
	t.Parallel()

	params, err := newTestBuilder(domain.Defaults{}).Build(&domain.OutgoingMessage{
		Recipients: domain.Single("a@x.com"),
		Body:       domain.Body{Fields: map[string]any{"html": "<p>no beacon</p>"}},
	}, "mimi_welcome")
	if err != nil {
		t.Fatalf("Build() unexpected error = %v", err)
	}
	if !strings.Contains(params[ParamBody], "no beacon") {
		t.Fatalf("body = %q", params[ParamBody])
	}
}

func TestValidateBeacon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		content string
		wantErr bool
	}{
		{content: "<img>[[peek_image]]</img>"},
		{content: "footer [[tracking_beacon]]"},
		{content: "[[peek_image]] and [[tracking_beacon]]"},
		{content: "", wantErr: true},
		{content: "[[peek image]]", wantErr: true},
		{content: "<p>plain</p>", wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateBeacon(tt.content)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("ValidateBeacon(%q) error = %v, want ErrValidation", tt.content, err)
			}
			if !strings.Contains(err.Error(), PeekImageMarker) {
				t.Fatalf("error %q should name the required marker", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ValidateBeacon(%q) unexpected error = %v", tt.content, err)
		}
	}
}
