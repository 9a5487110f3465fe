// Package notify sends notifications about finished tunecheck runs.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// result statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const defaultTimeout = 10 * time.Second

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnError       bool
	OnComplete    bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Result describes a finished run. Custom scripts get it as JSON on stdin.
type Result struct {
	Status   string `json:"status"` // StatusSuccess or StatusFailure
	Run      string `json:"run"`    // what ran, e.g. "e2e" or "seed"
	AppURL   string `json:"app_url,omitempty"`
	Fixtures string `json:"fixtures,omitempty"` // seeded fixture file
	Duration string `json:"duration,omitempty"`
	LogFile  string `json:"log_file,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Service delivers Results to the configured targets.
type Service struct {
	targets    []target
	onError    bool
	onComplete bool
	timeout    time.Duration
	hostname   string
	log        logger
}

type logger interface {
	Warn(format string, args ...any)
}

// target is a single delivery destination.
type target struct {
	kind string // channel name from Params.Channels
	dest string // notifier destination uri or script path
	send func(ctx context.Context, r Result, msg string) error
}

// notifierTarget delivers the formatted message through n.
func notifierTarget(kind string, n ntfy.Notifier, dest string, escape bool) target {
	return target{kind: kind, dest: dest, send: func(ctx context.Context, _ Result, msg string) error {
		if escape {
			msg = html.EscapeString(msg)
		}
		return n.Send(ctx, dest, msg)
	}}
}

// setting is a Params field a channel can't work without.
type setting struct {
	key string
	set func(Params) bool
}

// channelKind knows what a channel needs and how to build its targets.
type channelKind struct {
	needs []setting
	build func(Params) ([]target, error)
}

var kinds = map[string]channelKind{
	"telegram": {
		needs: []setting{
			{"notify_telegram_token", func(p Params) bool { return p.TelegramToken != "" }},
			{"notify_telegram_chat", func(p Params) bool { return p.TelegramChat != "" }},
		},
		build: func(p Params) ([]target, error) {
			tg, err := newTelegram(p.TelegramToken)
			if err != nil {
				return nil, err
			}
			return []target{notifierTarget("telegram", tg, "telegram:"+p.TelegramChat+"?parseMode=HTML", true)}, nil
		},
	},
	"email": {
		needs: []setting{
			{"notify_smtp_host", func(p Params) bool { return p.SMTPHost != "" }},
			{"notify_email_from", func(p Params) bool { return p.EmailFrom != "" }},
			{"notify_email_to", func(p Params) bool { return len(p.EmailTo) > 0 }},
		},
		build: func(p Params) ([]target, error) {
			em := ntfy.NewEmail(ntfy.SMTPParams{Host: p.SMTPHost, Port: p.SMTPPort, Username: p.SMTPUsername,
				Password: p.SMTPPassword, StartTLS: p.SMTPStartTLS})
			q := url.Values{"from": {p.EmailFrom}, "subject": {"tunecheck notification"}}
			return []target{notifierTarget("email", em, "mailto:"+strings.Join(p.EmailTo, ",")+"?"+q.Encode(), false)}, nil
		},
	},
	"slack": {
		needs: []setting{
			{"notify_slack_token", func(p Params) bool { return p.SlackToken != "" }},
			{"notify_slack_channel", func(p Params) bool { return p.SlackChannel != "" }},
		},
		build: func(p Params) ([]target, error) {
			return []target{notifierTarget("slack", ntfy.NewSlack(p.SlackToken), "slack:"+p.SlackChannel, false)}, nil
		},
	},
	"webhook": {
		needs: []setting{{"notify_webhook_urls", func(p Params) bool { return len(p.WebhookURLs) > 0 }}},
		build: func(p Params) ([]target, error) {
			wh := ntfy.NewWebhook(ntfy.WebhookParams{})
			res := make([]target, 0, len(p.WebhookURLs))
			for _, u := range p.WebhookURLs {
				res = append(res, notifierTarget("webhook", wh, u, false))
			}
			return res, nil
		},
	},
	"custom": {
		needs: []setting{{"notify_custom_script", func(p Params) bool { return p.CustomScript != "" }}},
		build: func(p Params) ([]target, error) {
			s := script{path: p.CustomScript}
			return []target{{kind: "custom", dest: s.path, send: func(ctx context.Context, r Result, _ string) error {
				return s.run(ctx, r)
			}}}, nil
		},
	},
}

// newTelegram verifies token against the telegram API, tests replace it.
var newTelegram = func(token string) (ntfy.Notifier, error) {
	return ntfy.NewTelegram(ntfy.TelegramParams{Token: token})
}

// New creates a notification Service from the given Params.
// returns nil, nil if no channels are configured, Send is nil-safe.
// A channel missing a required setting is an error. A channel whose notifier
// can't be created (telegram with an unreachable API) is skipped with a warning.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service means notifications are off
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	svc := &Service{onError: p.OnError, onComplete: p.OnComplete, hostname: hostname, log: log,
		timeout: time.Duration(p.TimeoutMs) * time.Millisecond}
	if svc.timeout <= 0 {
		svc.timeout = defaultTimeout
	}

	for _, ch := range p.Channels {
		name := strings.TrimSpace(strings.ToLower(ch))
		k, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("unknown notification channel: %q", ch)
		}
		for _, s := range k.needs {
			if !s.set(p) {
				return nil, fmt.Errorf("%s channel: %s is required", name, s.key)
			}
		}
		ts, bErr := k.build(p)
		if bErr != nil {
			log.Warn("%s channel disabled: %s", name, redact(bErr.Error(), p))
			continue
		}
		svc.targets = append(svc.targets, ts...)
	}

	if len(svc.targets) == 0 {
		log.Warn("all notification channels were disabled due to initialization errors")
	}
	return svc, nil
}

// redact hides credentials that may end up in error messages, e.g. the telegram token in a request url.
func redact(msg string, p Params) string {
	for _, secret := range []string{p.TelegramToken, p.SlackToken, p.SMTPPassword} {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
		}
	}
	return msg
}

// Send delivers r to every target if its status is enabled. nil-safe on receiver.
// errors are logged but never returned.
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil || !s.wants(r.Status) {
		return
	}

	msg := s.formatMessage(r)
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, t := range s.targets {
		if err := t.send(sendCtx, r, msg); err != nil {
			s.log.Warn("%s notification failed: %v", t.kind, err)
		}
	}
}

func (s *Service) wants(status string) bool {
	switch status {
	case StatusSuccess:
		return s.onComplete
	case StatusFailure:
		return s.onError
	}
	return false
}

// formatMessage renders r as plain text, one "name: value" line per set field.
func (s *Service) formatMessage(r Result) string {
	var b strings.Builder

	head, verdict := "tunecheck", "failed"
	if r.Run != "" {
		head += " " + r.Run
	}
	if r.Status == StatusSuccess {
		verdict = "passed"
	}
	fmt.Fprintf(&b, "%s %s on %s\n\n", head, verdict, s.hostname)

	for _, f := range [][2]string{
		{"app", r.AppURL},
		{"fixtures", r.Fixtures},
		{"duration", r.Duration},
		{"log", r.LogFile},
		{"error", r.Error},
	} {
		if f[1] != "" {
			fmt.Fprintf(&b, "%-9s %s\n", f[0]+":", f[1])
		}
	}
	return b.String()
}
