package domain

import (
	"fmt"
	"strings"
)

const (
	ContentTypeTextPlain = "text/plain"
	ContentTypeTextHTML  = "text/html"
)

// Part is one content-typed section of a multipart body.
type Part struct {
	ContentType string
	Content     string
}

// MediaType returns the lowercased content type without parameters.
func (p Part) MediaType() string {
	mediaType, _, _ := strings.Cut(p.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Body is either a single content string, a set of content-typed parts, or a
// key/value structure for raw mode.
type Body struct {
	Content string
	Parts   []Part
	Fields  map[string]any
}

// HasParts reports whether the body carries content-typed parts.
func (b Body) HasParts() bool { return len(b.Parts) > 0 }

// Part returns the first part matching contentType.
func (b Body) Part(contentType string) (Part, bool) {
	want := strings.ToLower(contentType)
	for _, part := range b.Parts {
		if part.MediaType() == want {
			return part, true
		}
	}
	return Part{}, false
}

// OutgoingMessage is a composed email ready to be mapped onto provider
// parameters. It is built per delivery and never persisted.
type OutgoingMessage struct {
	Recipients        ListValue
	BCC               ListValue
	Hidden            ListValue
	From              *string
	PromotionName     *string
	Subject           string
	Body              Body
	Unconfirmed       bool
	UseCustomTemplate bool
}

// WithRecipient returns a copy addressed to exactly one recipient.
func (m OutgoingMessage) WithRecipient(recipient string) OutgoingMessage {
	m.Recipients = Single(recipient)
	return m
}

// Validate rejects messages no call can be built from: a nil message, absent
// recipients, or a raw-mode message whose body is content or parts instead of
// key/value fields.
func (m *OutgoingMessage) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is required", ErrUsage)
	}
	if m.Recipients.IsAbsent() {
		return fmt.Errorf("%w: recipients are required", ErrUsage)
	}
	if !m.UseCustomTemplate && m.Body.Fields == nil && (m.Body.Content != "" || m.Body.HasParts()) {
		return fmt.Errorf("%w: raw mode requires a key/value body", ErrUsage)
	}
	return nil
}

// Credentials authenticate every provider call.
type Credentials struct {
	Username string
	APIKey   string
}

// Defaults are merged into a message when it omits bcc, from or body fields.
type Defaults struct {
	BCC  ListValue
	From string
	Body map[string]any
}

// RequestParameters is the flat form sent to the provider. Absent values are
// omitted rather than sent empty.
type RequestParameters map[string]string

// SetIf stores value under key when ok is true.
func (p RequestParameters) SetIf(key, value string, ok bool) {
	if ok {
		p[key] = value
	}
}
