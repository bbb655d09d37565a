package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/kursadbilgin/mimi-dispatch/internal/config"
	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
	"github.com/kursadbilgin/mimi-dispatch/internal/service"
)

// fieldFlags collects repeated -field key=value pairs for raw-mode bodies.
type fieldFlags map[string]any

func (f fieldFlags) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (f fieldFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("field must be key=value, got %q", value)
	}
	f[strings.TrimSpace(key)] = val
	return nil
}

type sendOptions struct {
	Action      string
	To          string
	BCC         string
	From        string
	Subject     string
	Promotion   string
	Hidden      string
	HTML        string
	Text        string
	Template    bool
	Unconfirmed bool
	Fields      fieldFlags
}

func parseSendOptions(args []string) (*sendOptions, error) {
	opts := &sendOptions{Fields: fieldFlags{}}

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.StringVar(&opts.Action, "action", "", "delivery action, e.g. mimi_welcome")
	fs.StringVar(&opts.To, "to", "", "recipient, or comma-separated recipients to fan out")
	fs.StringVar(&opts.BCC, "bcc", "", "bcc address or comma-separated list")
	fs.StringVar(&opts.From, "from", "", "sender address")
	fs.StringVar(&opts.Subject, "subject", "", "subject line")
	fs.StringVar(&opts.Promotion, "promotion", "", "promotion name (defaults to the action name)")
	fs.StringVar(&opts.Hidden, "hidden", "", "hidden value")
	fs.StringVar(&opts.HTML, "html", "", "html content (templated mode)")
	fs.StringVar(&opts.Text, "text", "", "plain text content (templated mode)")
	fs.BoolVar(&opts.Template, "template", false, "use custom template mode")
	fs.BoolVar(&opts.Unconfirmed, "unconfirmed", false, "send to unconfirmed recipients")
	fs.Var(opts.Fields, "field", "raw body field key=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Action == "" {
		return nil, fmt.Errorf("%w: -action is required", domain.ErrUsage)
	}
	return opts, nil
}

func (o *sendOptions) compose(_ context.Context, _ service.Params) (*domain.OutgoingMessage, error) {
	msg := &domain.OutgoingMessage{
		Recipients:        config.ParseAddressList(o.To),
		BCC:               config.ParseAddressList(o.BCC),
		Subject:           o.Subject,
		Unconfirmed:       o.Unconfirmed,
		UseCustomTemplate: o.Template,
	}
	if o.From != "" {
		msg.From = &o.From
	}
	if o.Promotion != "" {
		msg.PromotionName = &o.Promotion
	}
	if o.Hidden != "" {
		msg.Hidden = domain.Single(o.Hidden)
	}

	switch {
	case !o.Template:
		msg.Body.Fields = o.Fields
	case o.Text != "":
		msg.Body.Parts = []domain.Part{
			{ContentType: domain.ContentTypeTextPlain, Content: o.Text},
			{ContentType: domain.ContentTypeTextHTML, Content: o.HTML},
		}
	default:
		msg.Body.Content = o.HTML
	}

	return msg, nil
}
