package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	ntfy "github.com/go-pkgz/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotifier implements ntfy.Notifier for testing.
type mockNotifier struct {
	schema string
	mu     sync.Mutex
	calls  []sendCall
	err    error
}

type sendCall struct {
	dest string
	text string
}

func (m *mockNotifier) Send(_ context.Context, dest, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{dest: dest, text: text})
	return m.err
}

func (m *mockNotifier) Schema() string { return m.schema }
func (m *mockNotifier) String() string { return "mock-" + m.schema }

func (m *mockNotifier) getCalls() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]sendCall, len(m.calls))
	copy(res, m.calls)
	return res
}

// mockLogger captures warnings for testing.
type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *mockLogger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *mockLogger) getMsgs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]string, len(l.msgs))
	copy(res, l.msgs)
	return res
}

// stubTelegram replaces the telegram notifier constructor for the duration of the test.
func stubTelegram(t *testing.T, f func(token string) (ntfy.Notifier, error)) {
	t.Helper()
	orig := newTelegram
	newTelegram = f
	t.Cleanup(func() { newTelegram = orig })
}

func TestNew(t *testing.T) {
	t.Run("empty channels returns nil", func(t *testing.T) {
		svc, err := New(Params{}, &mockLogger{})
		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("unknown channel returns error", func(t *testing.T) {
		_, err := New(Params{Channels: []string{"pager"}}, &mockLogger{})
		require.ErrorContains(t, err, `unknown notification channel: "pager"`)
	})

	t.Run("channel validation", func(t *testing.T) {
		tbl := []struct {
			name   string
			params Params
			errMsg string
		}{
			{"webhook without urls", Params{Channels: []string{"webhook"}}, "notify_webhook_urls is required"},
			{"email without host", Params{Channels: []string{"email"}}, "notify_smtp_host is required"},
			{"email without from", Params{Channels: []string{"email"}, SMTPHost: "smtp.example.com"},
				"notify_email_from is required"},
			{"email without to", Params{Channels: []string{"email"}, SMTPHost: "smtp.example.com", EmailFrom: "ci@example.com"},
				"notify_email_to is required"},
			{"slack without token", Params{Channels: []string{"slack"}}, "notify_slack_token is required"},
			{"slack without channel", Params{Channels: []string{"slack"}, SlackToken: "xoxb-token"},
				"notify_slack_channel is required"},
			{"telegram without token", Params{Channels: []string{"telegram"}}, "notify_telegram_token is required"},
			{"telegram without chat", Params{Channels: []string{"telegram"}, TelegramToken: "bot-token"},
				"notify_telegram_chat is required"},
			{"custom without script", Params{Channels: []string{"custom"}}, "notify_custom_script is required"},
		}
		for _, tt := range tbl {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.params, &mockLogger{})
				require.ErrorContains(t, err, tt.errMsg)
			})
		}
	})

	t.Run("all channels configured", func(t *testing.T) {
		tg := &mockNotifier{schema: "telegram"}
		stubTelegram(t, func(string) (ntfy.Notifier, error) { return tg, nil })

		svc, err := New(Params{
			Channels:      []string{"webhook", " Email", "slack", "telegram", "custom"},
			OnError:       true,
			WebhookURLs:   []string{"https://a.example.com/hook", "https://b.example.com/hook"},
			SMTPHost:      "smtp.example.com",
			SMTPPort:      587,
			EmailFrom:     "ci@example.com",
			EmailTo:       []string{"dev@example.com", "qa@example.com"},
			SlackToken:    "xoxb-token",
			SlackChannel:  "music-ci",
			TelegramToken: "bot-token",
			TelegramChat:  "-100123",
			CustomScript:  "/usr/local/bin/notify.sh",
		}, &mockLogger{})
		require.NoError(t, err)
		require.NotNil(t, svc)

		var got [][2]string
		for _, tt := range svc.targets {
			got = append(got, [2]string{tt.kind, tt.dest})
		}
		assert.Equal(t, [][2]string{
			{"webhook", "https://a.example.com/hook"},
			{"webhook", "https://b.example.com/hook"},
			{"email", "mailto:dev@example.com,qa@example.com?from=ci%40example.com&subject=tunecheck+notification"},
			{"slack", "slack:music-ci"},
			{"telegram", "telegram:-100123?parseMode=HTML"},
			{"custom", "/usr/local/bin/notify.sh"},
		}, got)
		assert.True(t, svc.onError)
		assert.False(t, svc.onComplete)

		// telegram target escapes the message, the mock sees what the api would get
		require.NoError(t, svc.targets[4].send(context.Background(), Result{}, "<b>"))
		assert.Equal(t, []sendCall{{dest: "telegram:-100123?parseMode=HTML", text: "&lt;b&gt;"}}, tg.getCalls())
	})

	t.Run("telegram api failure logs warning and skips", func(t *testing.T) {
		stubTelegram(t, func(string) (ntfy.Notifier, error) {
			return nil, errors.New("can't retrieve bot info from Telegram API: 401 Unauthorized")
		})

		log := &mockLogger{}
		svc, err := New(Params{Channels: []string{"telegram"}, TelegramToken: "bot-token", TelegramChat: "-123"}, log)
		require.NoError(t, err, "api failure is not fatal")
		require.NotNil(t, svc)
		assert.Empty(t, svc.targets)
		msgs := log.getMsgs()
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0], "telegram channel disabled")
		assert.Contains(t, msgs[1], "all notification channels were disabled")
	})

	t.Run("telegram api failure redacts token", func(t *testing.T) {
		stubTelegram(t, func(token string) (ntfy.Notifier, error) {
			return nil, fmt.Errorf("request to https://api.telegram.org/bot%s/getMe failed", token)
		})

		log := &mockLogger{}
		_, err := New(Params{Channels: []string{"telegram"}, TelegramToken: "123456:ABC-secret", TelegramChat: "-123"}, log)
		require.NoError(t, err)
		msgs := log.getMsgs()
		require.NotEmpty(t, msgs)
		assert.Equal(t, "telegram channel disabled: request to https://api.telegram.org/bot[REDACTED]/getMe failed", msgs[0])
	})

	t.Run("timeout", func(t *testing.T) {
		svc, err := New(Params{Channels: []string{"webhook"}, WebhookURLs: []string{"https://example.com"}}, &mockLogger{})
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, svc.timeout, "default")

		svc, err = New(Params{Channels: []string{"webhook"}, WebhookURLs: []string{"https://example.com"}, TimeoutMs: 2500},
			&mockLogger{})
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, svc.timeout)
	})
}

func TestService_Send(t *testing.T) {
	newSvc := func(onComplete, onError bool, ts ...target) (*Service, *mockLogger) {
		log := &mockLogger{}
		return &Service{targets: ts, onComplete: onComplete, onError: onError, timeout: 5 * time.Second,
			hostname: "ci-runner", log: log}, log
	}

	t.Run("nil receiver is no-op", func(t *testing.T) {
		var svc *Service
		svc.Send(context.Background(), Result{Status: StatusFailure})
	})

	t.Run("status filtering", func(t *testing.T) {
		tbl := []struct {
			name       string
			onComplete bool
			onError    bool
			status     string
			sent       bool
		}{
			{"success sent", true, false, StatusSuccess, true},
			{"success skipped", false, true, StatusSuccess, false},
			{"failure sent", false, true, StatusFailure, true},
			{"failure skipped", true, false, StatusFailure, false},
		}
		for _, tt := range tbl {
			t.Run(tt.name, func(t *testing.T) {
				mock := &mockNotifier{schema: "http"}
				svc, _ := newSvc(tt.onComplete, tt.onError, notifierTarget("webhook", mock, "https://example.com/hook", false))
				svc.Send(context.Background(), Result{Status: tt.status, Run: "e2e"})
				if !tt.sent {
					assert.Empty(t, mock.getCalls())
					return
				}
				calls := mock.getCalls()
				require.Len(t, calls, 1)
				assert.Equal(t, "https://example.com/hook", calls[0].dest)
				assert.True(t, strings.HasPrefix(calls[0].text, "tunecheck e2e "), calls[0].text)
			})
		}
	})

	t.Run("notifier errors are logged", func(t *testing.T) {
		failing := &mockNotifier{schema: "http", err: errors.New("connection refused")}
		ok := &mockNotifier{schema: "slack"}
		svc, log := newSvc(true, true,
			notifierTarget("webhook", failing, "https://example.com/hook", false),
			notifierTarget("slack", ok, "slack:music-ci", false))
		svc.Send(context.Background(), Result{Status: StatusSuccess})

		assert.Len(t, ok.getCalls(), 1, "later channels still notified")
		msgs := log.getMsgs()
		require.Len(t, msgs, 1)
		assert.Equal(t, "webhook notification failed: connection refused", msgs[0])
	})

	t.Run("unknown status is not sent", func(t *testing.T) {
		mock := &mockNotifier{schema: "http"}
		svc, _ := newSvc(true, true, notifierTarget("webhook", mock, "https://example.com/hook", false))
		svc.Send(context.Background(), Result{Status: "skipped"})
		assert.Empty(t, mock.getCalls())
	})

	t.Run("custom script failure is logged with its kind", func(t *testing.T) {
		boom := target{kind: "custom", send: func(context.Context, Result, string) error { return errors.New("exit status 3") }}
		svc, log := newSvc(true, true, boom)
		svc.Send(context.Background(), Result{Status: StatusFailure})
		assert.Equal(t, []string{"custom notification failed: exit status 3"}, log.getMsgs())
	})

	t.Run("html escaped for telegram only", func(t *testing.T) {
		tg := &mockNotifier{schema: "telegram"}
		plain := &mockNotifier{schema: "http"}
		svc, _ := newSvc(false, true,
			notifierTarget("telegram", tg, "telegram:-100123?parseMode=HTML", true),
			notifierTarget("webhook", plain, "https://example.com/hook", false))
		svc.Send(context.Background(), Result{Status: StatusFailure, Error: "check <search-view> & <music-player>"})

		require.Len(t, tg.getCalls(), 1)
		assert.Contains(t, tg.getCalls()[0].text, "check &lt;search-view&gt; &amp; &lt;music-player&gt;")
		require.Len(t, plain.getCalls(), 1)
		assert.Contains(t, plain.getCalls()[0].text, "check <search-view> & <music-player>")
	})
}

func TestService_FormatMessage(t *testing.T) {
	svc := &Service{hostname: "ci-runner"}

	t.Run("passed run", func(t *testing.T) {
		msg := svc.formatMessage(Result{
			Status:   StatusSuccess,
			Run:      "e2e",
			AppURL:   "http://localhost:8080/",
			Duration: "4m 12s",
			LogFile:  "/tmp/tunecheck-e2e/e2e-20261016-101500.log",
		})
		assert.Equal(t, "tunecheck e2e passed on ci-runner\n\n"+
			"app:      http://localhost:8080/\n"+
			"duration: 4m 12s\n"+
			"log:      /tmp/tunecheck-e2e/e2e-20261016-101500.log\n", msg)
	})

	t.Run("failed run", func(t *testing.T) {
		msg := svc.formatMessage(Result{
			Status:   StatusFailure,
			Run:      "seed",
			AppURL:   "http://localhost:8080/",
			Fixtures: "songs.yml",
			Error:    "import 3 song(s): 500 Internal Server Error",
		})
		assert.Contains(t, msg, "tunecheck seed failed on ci-runner")
		assert.Contains(t, msg, "fixtures: songs.yml\n")
		assert.Contains(t, msg, "error:    import 3 song(s): 500 Internal Server Error\n")
		assert.NotContains(t, msg, "duration:")
	})

	t.Run("bare result", func(t *testing.T) {
		msg := svc.formatMessage(Result{Status: StatusFailure})
		assert.Equal(t, "tunecheck failed on ci-runner\n\n", msg)
	})
}
