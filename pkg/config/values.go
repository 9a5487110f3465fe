package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/umputun/tunecheck/pkg/notify"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., HeadlessSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit false/0 from "not set", enabling
// proper merge behavior where local config can override global config with zero values.
type Values struct {
	AppURL              string
	AuthCookie          string
	Username            string
	Password            string
	LoginEmail          string
	MusicDir            string
	AllowOrigin         string
	Headless            bool
	HeadlessSet         bool // tracks if headless was explicitly set
	Browser             string
	SlowMoMs            int
	SlowMoMsSet         bool // tracks if slow_mo_ms was explicitly set
	WaitTimeoutMs       int
	WaitTimeoutMsSet    bool // tracks if wait_timeout_ms was explicitly set
	WaitSleepMs         int
	WaitSleepMsSet      bool // tracks if wait_sleep_ms was explicitly set
	PlayDelayMs         int
	PlayDelayMsSet      bool // tracks if play_delay_ms was explicitly set
	RequestTimeoutMs    int
	RequestTimeoutMsSet bool // tracks if request_timeout_ms was explicitly set
	LogDir              string

	// notifications
	NotifyChannels        []string
	NotifyChannelsSet     bool // tracks if notify_channels was explicitly set
	NotifyOnError         bool
	NotifyOnErrorSet      bool // tracks if notify_on_error was explicitly set
	NotifyOnComplete      bool
	NotifyOnCompleteSet   bool // tracks if notify_on_complete was explicitly set
	NotifyTimeoutMs       int
	NotifyTimeoutMsSet    bool // tracks if notify_timeout_ms was explicitly set
	NotifyTelegramToken   string
	NotifyTelegramChat    string
	NotifySlackToken      string
	NotifySlackChannel    string
	NotifySMTPHost        string
	NotifySMTPPort        int
	NotifySMTPPortSet     bool // tracks if notify_smtp_port was explicitly set
	NotifySMTPUsername    string
	NotifySMTPPassword    string
	NotifySMTPStartTLS    bool
	NotifySMTPStartTLSSet bool // tracks if notify_smtp_starttls was explicitly set
	NotifyEmailFrom       string
	NotifyEmailTo         []string
	NotifyEmailToSet      bool // tracks if notify_email_to was explicitly set
	NotifyWebhookURLs     []string
	NotifyWebhookURLsSet  bool // tracks if notify_webhook_urls was explicitly set
	NotifyCustomScript    string
}

// supported browsers
var browsers = map[string]bool{"chromium": true, "firefox": true, "webkit": true}

// WaitTimeout returns the polling timeout for expected state.
func (v Values) WaitTimeout() time.Duration { return time.Duration(v.WaitTimeoutMs) * time.Millisecond }

// WaitSleep returns the delay between polls.
func (v Values) WaitSleep() time.Duration { return time.Duration(v.WaitSleepMs) * time.Millisecond }

// PlayDelay returns the delay before the app starts playing a song.
func (v Values) PlayDelay() time.Duration { return time.Duration(v.PlayDelayMs) * time.Millisecond }

// RequestTimeout returns the timeout for requests to the app server.
func (v Values) RequestTimeout() time.Duration {
	return time.Duration(v.RequestTimeoutMs) * time.Millisecond
}

// SlowMo returns the delay the browser adds to each operation.
func (v Values) SlowMo() time.Duration { return time.Duration(v.SlowMoMs) * time.Millisecond }

// NotifyParams returns the notification settings.
func (v Values) NotifyParams() notify.Params {
	return notify.Params{
		Channels:      v.NotifyChannels,
		OnError:       v.NotifyOnError,
		OnComplete:    v.NotifyOnComplete,
		TimeoutMs:     v.NotifyTimeoutMs,
		TelegramToken: v.NotifyTelegramToken,
		TelegramChat:  v.NotifyTelegramChat,
		SlackToken:    v.NotifySlackToken,
		SlackChannel:  v.NotifySlackChannel,
		SMTPHost:      v.NotifySMTPHost,
		SMTPPort:      v.NotifySMTPPort,
		SMTPUsername:  v.NotifySMTPUsername,
		SMTPPassword:  v.NotifySMTPPassword,
		SMTPStartTLS:  v.NotifySMTPStartTLS,
		EmailFrom:     v.NotifyEmailFrom,
		EmailTo:       v.NotifyEmailTo,
		WebhookURLs:   v.NotifyWebhookURLs,
		CustomScript:  v.NotifyCustomScript,
	}
}

// valuesLoader loads scalar values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
//
//nolint:dupl // intentional structural similarity with colorLoader.Load
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	// start with embedded defaults
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	// parse global config if exists
	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	// parse local config if exists
	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)

	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only comments/whitespace.
// this enables fallback to embedded defaults for files that are commented templates.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}

	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values
	section := cfg.Section("") // default section (no section header)

	// app server
	if key, err := section.GetKey("app_url"); err == nil {
		val := strings.TrimSpace(key.String())
		if val != "" {
			u, urlErr := url.Parse(val)
			if urlErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return Values{}, fmt.Errorf("invalid app_url %q: must be an http(s) URL", val)
			}
		}
		values.AppURL = val
	}
	if key, err := section.GetKey("auth_cookie"); err == nil {
		values.AuthCookie = strings.TrimSpace(key.String())
	}
	if key, err := section.GetKey("username"); err == nil {
		values.Username = key.String()
	}
	if key, err := section.GetKey("password"); err == nil {
		values.Password = key.String()
	}
	if key, err := section.GetKey("login_email"); err == nil {
		values.LoginEmail = strings.TrimSpace(key.String())
	}

	// fixture files
	if key, err := section.GetKey("music_dir"); err == nil {
		values.MusicDir = strings.TrimSpace(key.String())
	}
	if key, err := section.GetKey("allow_origin"); err == nil {
		values.AllowOrigin = strings.TrimSpace(key.String())
	}

	// browser settings
	if key, err := section.GetKey("headless"); err == nil {
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid headless: %w", boolErr)
		}
		values.Headless = val
		values.HeadlessSet = true
	}
	if key, err := section.GetKey("browser"); err == nil {
		val := strings.ToLower(strings.TrimSpace(key.String()))
		if val != "" && !browsers[val] {
			return Values{}, fmt.Errorf("invalid browser %q: must be chromium, firefox or webkit", val)
		}
		values.Browser = val
	}

	// timing settings
	msKeys := []struct {
		key   string
		field *int
		set   *bool
	}{
		{"slow_mo_ms", &values.SlowMoMs, &values.SlowMoMsSet},
		{"wait_timeout_ms", &values.WaitTimeoutMs, &values.WaitTimeoutMsSet},
		{"wait_sleep_ms", &values.WaitSleepMs, &values.WaitSleepMsSet},
		{"play_delay_ms", &values.PlayDelayMs, &values.PlayDelayMsSet},
		{"request_timeout_ms", &values.RequestTimeoutMs, &values.RequestTimeoutMsSet},
	}
	for _, mk := range msKeys {
		key, err := section.GetKey(mk.key)
		if err != nil {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", mk.key, intErr)
		}
		if val < 0 {
			return Values{}, fmt.Errorf("invalid %s: must be non-negative, got %d", mk.key, val)
		}
		*mk.field = val
		*mk.set = true
	}

	// paths
	if key, err := section.GetKey("log_dir"); err == nil {
		values.LogDir = strings.TrimSpace(key.String())
	}

	if err := parseNotifyValues(section, &values); err != nil {
		return Values{}, err
	}

	return values, nil
}

// parseNotifyValues reads the notify_* keys.
func parseNotifyValues(section *ini.Section, values *Values) error {
	if key, err := section.GetKey("notify_channels"); err == nil {
		values.NotifyChannels = splitList(key.String())
		values.NotifyChannelsSet = true
	}

	bools := []struct {
		key   string
		field *bool
		set   *bool
	}{
		{"notify_on_error", &values.NotifyOnError, &values.NotifyOnErrorSet},
		{"notify_on_complete", &values.NotifyOnComplete, &values.NotifyOnCompleteSet},
		{"notify_smtp_starttls", &values.NotifySMTPStartTLS, &values.NotifySMTPStartTLSSet},
	}
	for _, bk := range bools {
		key, err := section.GetKey(bk.key)
		if err != nil {
			continue
		}
		val, boolErr := key.Bool()
		if boolErr != nil {
			return fmt.Errorf("invalid %s: %w", bk.key, boolErr)
		}
		*bk.field = val
		*bk.set = true
	}

	ints := []struct {
		key   string
		field *int
		set   *bool
	}{
		{"notify_timeout_ms", &values.NotifyTimeoutMs, &values.NotifyTimeoutMsSet},
		{"notify_smtp_port", &values.NotifySMTPPort, &values.NotifySMTPPortSet},
	}
	for _, ik := range ints {
		key, err := section.GetKey(ik.key)
		if err != nil {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return fmt.Errorf("invalid %s: %w", ik.key, intErr)
		}
		if val < 0 {
			return fmt.Errorf("invalid %s: must be non-negative, got %d", ik.key, val)
		}
		*ik.field = val
		*ik.set = true
	}

	strs := []struct {
		key   string
		field *string
	}{
		{"notify_telegram_token", &values.NotifyTelegramToken},
		{"notify_telegram_chat", &values.NotifyTelegramChat},
		{"notify_slack_token", &values.NotifySlackToken},
		{"notify_slack_channel", &values.NotifySlackChannel},
		{"notify_smtp_host", &values.NotifySMTPHost},
		{"notify_smtp_username", &values.NotifySMTPUsername},
		{"notify_smtp_password", &values.NotifySMTPPassword},
		{"notify_email_from", &values.NotifyEmailFrom},
		{"notify_custom_script", &values.NotifyCustomScript},
	}
	for _, sk := range strs {
		if key, err := section.GetKey(sk.key); err == nil {
			*sk.field = strings.TrimSpace(key.String())
		}
	}

	if key, err := section.GetKey("notify_email_to"); err == nil {
		values.NotifyEmailTo = splitList(key.String())
		values.NotifyEmailToSet = true
	}
	if key, err := section.GetKey("notify_webhook_urls"); err == nil {
		values.NotifyWebhookURLs = splitList(key.String())
		values.NotifyWebhookURLsSet = true
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var res []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	if src.AppURL != "" {
		dst.AppURL = src.AppURL
	}
	if src.AuthCookie != "" {
		dst.AuthCookie = src.AuthCookie
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.LoginEmail != "" {
		dst.LoginEmail = src.LoginEmail
	}
	if src.MusicDir != "" {
		dst.MusicDir = src.MusicDir
	}
	if src.AllowOrigin != "" {
		dst.AllowOrigin = src.AllowOrigin
	}
	if src.HeadlessSet {
		dst.Headless = src.Headless
		dst.HeadlessSet = true
	}
	if src.Browser != "" {
		dst.Browser = src.Browser
	}
	if src.SlowMoMsSet {
		dst.SlowMoMs = src.SlowMoMs
		dst.SlowMoMsSet = true
	}
	if src.WaitTimeoutMsSet {
		dst.WaitTimeoutMs = src.WaitTimeoutMs
		dst.WaitTimeoutMsSet = true
	}
	if src.WaitSleepMsSet {
		dst.WaitSleepMs = src.WaitSleepMs
		dst.WaitSleepMsSet = true
	}
	if src.PlayDelayMsSet {
		dst.PlayDelayMs = src.PlayDelayMs
		dst.PlayDelayMsSet = true
	}
	if src.RequestTimeoutMsSet {
		dst.RequestTimeoutMs = src.RequestTimeoutMs
		dst.RequestTimeoutMsSet = true
	}
	if src.LogDir != "" {
		dst.LogDir = src.LogDir
	}
	dst.mergeNotifyFrom(src)
}

// mergeNotifyFrom merges the notify_* values from src into dst.
func (dst *Values) mergeNotifyFrom(src *Values) {
	if src.NotifyChannelsSet {
		dst.NotifyChannels = src.NotifyChannels
		dst.NotifyChannelsSet = true
	}
	if src.NotifyOnErrorSet {
		dst.NotifyOnError = src.NotifyOnError
		dst.NotifyOnErrorSet = true
	}
	if src.NotifyOnCompleteSet {
		dst.NotifyOnComplete = src.NotifyOnComplete
		dst.NotifyOnCompleteSet = true
	}
	if src.NotifyTimeoutMsSet {
		dst.NotifyTimeoutMs = src.NotifyTimeoutMs
		dst.NotifyTimeoutMsSet = true
	}
	if src.NotifySMTPPortSet {
		dst.NotifySMTPPort = src.NotifySMTPPort
		dst.NotifySMTPPortSet = true
	}
	if src.NotifySMTPStartTLSSet {
		dst.NotifySMTPStartTLS = src.NotifySMTPStartTLS
		dst.NotifySMTPStartTLSSet = true
	}
	if src.NotifyEmailToSet {
		dst.NotifyEmailTo = src.NotifyEmailTo
		dst.NotifyEmailToSet = true
	}
	if src.NotifyWebhookURLsSet {
		dst.NotifyWebhookURLs = src.NotifyWebhookURLs
		dst.NotifyWebhookURLsSet = true
	}
	for _, f := range []struct{ dst, src *string }{
		{&dst.NotifyTelegramToken, &src.NotifyTelegramToken},
		{&dst.NotifyTelegramChat, &src.NotifyTelegramChat},
		{&dst.NotifySlackToken, &src.NotifySlackToken},
		{&dst.NotifySlackChannel, &src.NotifySlackChannel},
		{&dst.NotifySMTPHost, &src.NotifySMTPHost},
		{&dst.NotifySMTPUsername, &src.NotifySMTPUsername},
		{&dst.NotifySMTPPassword, &src.NotifySMTPPassword},
		{&dst.NotifyEmailFrom, &src.NotifyEmailFrom},
		{&dst.NotifyCustomScript, &src.NotifyCustomScript},
	} {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
}

// stripComments removes lines starting with # (comment lines) from content.
// empty lines are preserved, inline comments are not supported.
// handles both Unix (LF) and Windows (CRLF) line endings.
func stripComments(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for line := range strings.SplitSeq(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
