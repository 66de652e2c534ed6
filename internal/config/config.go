package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultMetricsCheckSec    = 300
	defaultHealthCheckSec     = 120
	defaultQueueDrainSec      = 30
	defaultEscalationSweepSec = 600
	defaultCleanupIntervalSec = 86400
	defaultReloadSeconds      = 5
	defaultWindowHours        = 1
	defaultOpsListen          = ":8080"

	defaultWarningFailureRate   = 50.0
	defaultCriticalFailureRate  = 75.0
	defaultServiceFailureRate   = 80.0
	defaultServiceCriticalRate  = 90.0
	defaultServiceMinAttempts   = 5
	defaultCriticalErrorCount   = 25
	defaultStaleValidationMin   = 30
	defaultMinActiveServices    = 1
	defaultCooldownMin          = 15
	defaultEscalationAgeMin     = 30
	defaultRecentSuccessMin     = 30
	defaultRetryDelayMin        = 5
	defaultRetentionMaxAgeHours = 720

	defaultNATSURL    = "nats://127.0.0.1:4222"
	defaultNATSBucket = "alerts"

	// ServiceModeSingle keeps in-memory alert store without NATS dependencies.
	ServiceModeSingle = "single"
	// ServiceModeNATS keeps JetStream KV-backed alert store settings.
	ServiceModeNATS = "nats"

	// MetricsSourceHTTP selects the JSON-over-HTTP metrics provider.
	MetricsSourceHTTP = "http"
	// MetricsSourcePrometheus selects the Prometheus text-exposition scraper.
	MetricsSourcePrometheus = "prometheus"

	// ChannelEmail identifies SMTP email transport.
	ChannelEmail = "email"
	// ChannelSMS identifies SMS gateway transport.
	ChannelSMS = "sms"
	// ChannelChat identifies Telegram chat transport.
	ChannelChat = "chat"
	// ChannelWebhook identifies generic webhook transport.
	ChannelWebhook = "webhook"
)

var channelOrder = []string{ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook}

// Config holds service runtime settings for the alerting core.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service    ServiceConfig    `toml:"service"`
	Log        LogConfig        `toml:"log"`
	Thresholds ThresholdsConfig `toml:"thresholds"`
	Retention  RetentionConfig  `toml:"retention"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Store      StoreConfig      `toml:"store"`
	Notify     NotifyConfig     `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, store mode, tick intervals, and reload controls.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name               string `toml:"name"`
	Mode               string `toml:"mode"`
	OpsListen          string `toml:"ops_listen"`
	MetricsCheckSec    int    `toml:"metrics_check_sec"`
	HealthCheckSec     int    `toml:"health_check_sec"`
	QueueDrainSec      int    `toml:"queue_drain_sec"`
	EscalationSweepSec int    `toml:"escalation_sweep_sec"`
	CleanupIntervalSec int    `toml:"cleanup_interval_sec"`
	WindowHours        int    `toml:"window_hours"`
	ReloadEnabled      bool   `toml:"reload_enabled"`
	ReloadIntervalSec  int    `toml:"reload_interval_sec"`
}

// LogConfig defines logging sinks.
// Params: console and file sink settings.
// Returns: logging behavior.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one log output.
// Params: enable flag, level, format, and optional path.
// Returns: sink behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ThresholdsConfig defines alert raise and auto-resolve boundaries.
// Params: percentage/count thresholds and timing windows; raise and resolve
// thresholds are configured independently.
// Returns: evaluator and lifecycle policy inputs.
type ThresholdsConfig struct {
	WarningFailureRate         float64 `toml:"warning_failure_rate"`
	CriticalFailureRate        float64 `toml:"critical_failure_rate"`
	ServiceFailureRate         float64 `toml:"service_failure_rate"`
	ServiceCriticalFailureRate float64 `toml:"service_critical_failure_rate"`
	ServiceMinAttempts         int64   `toml:"service_min_attempts"`
	CriticalErrorCount         int64   `toml:"critical_error_count"`
	StaleValidationMin         int     `toml:"stale_validation_min"`
	MinActiveServices          int     `toml:"min_active_services"`
	CooldownMin                int     `toml:"cooldown_min"`
	EscalationAgeMin           int     `toml:"escalation_age_min"`
	ResolveFailureRate         float64 `toml:"resolve_failure_rate"`
	ResolveRecentSuccessMin    int     `toml:"resolve_recent_success_min"`
}

// Cooldown returns dedup-key cooldown window.
// Params: none.
// Returns: cooldown duration.
func (t ThresholdsConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownMin) * time.Minute
}

// EscalationAge returns the unhandled-alert age that triggers sweep escalation.
// Params: none.
// Returns: age threshold duration.
func (t ThresholdsConfig) EscalationAge() time.Duration {
	return time.Duration(t.EscalationAgeMin) * time.Minute
}

// RetentionConfig defines resolved-alert cleanup policy.
// Params: explicit enable flag and age limit; cleanup stays disabled by default
// so storage growth is a caller-visible decision, not dead code.
// Returns: cleanup sweep policy.
type RetentionConfig struct {
	CleanupEnabled bool `toml:"cleanup_enabled"`
	MaxAgeHours    int  `toml:"max_age_hours"`
}

// MetricsConfig selects and configures the metrics snapshot source.
// Params: source kind plus per-source transport settings.
// Returns: metrics provider construction inputs.
type MetricsConfig struct {
	Source     string            `toml:"source"`
	BaseURL    string            `toml:"base_url"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Prometheus PrometheusMetrics `toml:"prometheus"`
}

// PrometheusMetrics maps exposition metric families onto delivery counters.
// Params: family names and the label carrying the service dimension.
// Returns: scrape mapping for the Prometheus provider.
type PrometheusMetrics struct {
	TotalFamily   string `toml:"total_family"`
	SuccessFamily string `toml:"success_family"`
	FailedFamily  string `toml:"failed_family"`
	ServiceLabel  string `toml:"service_label"`
}

// StoreConfig defines the alert store backend.
// Params: NATS connection and bucket settings used in nats mode.
// Returns: store backend options.
type StoreConfig struct {
	URL                []string `toml:"url"`
	Bucket             string   `toml:"bucket"`
	AllowCreateBuckets bool     `toml:"allow_create_buckets"`
}

// NotifyConfig defines outbound notification behavior.
// Params: routing table, contacts, and per-channel transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	Routing  RoutingConfig  `toml:"routing"`
	Contacts ContactsConfig `toml:"contacts"`
	Email    EmailChannel   `toml:"email"`
	SMS      SMSChannel     `toml:"sms"`
	Chat     ChatChannel    `toml:"chat"`
	Webhook  WebhookChannel `toml:"webhook"`
}

// RoutingConfig holds per-severity delivery rules and shared retry delay.
// Params: severity rule overrides; unset fields fall back to the static table.
// Returns: router policy.
type RoutingConfig struct {
	RetryDelayMin int           `toml:"retry_delay_min"`
	Critical      SeverityRoute `toml:"critical"`
	Warning       SeverityRoute `toml:"warning"`
	Info          SeverityRoute `toml:"info"`
}

// SeverityRoute is one severity→channels scheduling rule.
// Params: channel list, immediate flag, delay, and retry budget.
// Returns: routing rule snapshot copied into each job.
type SeverityRoute struct {
	Channels   []string `toml:"channels"`
	Immediate  bool     `toml:"immediate"`
	DelayMin   int      `toml:"delay_min"`
	MaxRetries int      `toml:"max_retries"`
}

// ContactsConfig is the mutable admin recipient record per channel.
// Params: recipient lists; replaceable at runtime through config reload.
// Returns: dispatcher recipient lookup.
type ContactsConfig struct {
	Emails      []string `toml:"emails"`
	Phones      []string `toml:"phones"`
	ChatIDs     []string `toml:"chat_ids"`
	WebhookURLs []string `toml:"webhook_urls"`
}

// ForChannel returns recipient list for one channel key.
// Params: normalized channel name.
// Returns: configured recipients (possibly empty).
func (c ContactsConfig) ForChannel(channel string) []string {
	switch channel {
	case ChannelEmail:
		return c.Emails
	case ChannelSMS:
		return c.Phones
	case ChannelChat:
		return c.ChatIDs
	case ChannelWebhook:
		return c.WebhookURLs
	default:
		return nil
	}
}

// EmailChannel defines SMTP transport settings.
// Params: enabled flag, SMTP endpoint, credentials, and sender address.
// Returns: email sender configuration.
type EmailChannel struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// SMSChannel defines HTTP SMS gateway settings.
// Params: enabled flag, gateway URL, API key, sender id, and response id path.
// Returns: SMS sender configuration.
type SMSChannel struct {
	Enabled       bool   `toml:"enabled"`
	GatewayURL    string `toml:"gateway_url"`
	APIKey        string `toml:"api_key"`
	From          string `toml:"from"`
	TimeoutSec    int    `toml:"timeout_sec"`
	MessageIDPath string `toml:"message_id_path"`
}

// ChatChannel defines Telegram chat transport settings.
// Params: enabled flag, bot token, and API base URL.
// Returns: chat sender configuration.
type ChatChannel struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	APIBase  string `toml:"api_base"`
}

// WebhookChannel defines generic outbound webhook settings.
// Params: enabled flag, method, static headers, timeout, and response ref path.
// Returns: webhook sender configuration.
type WebhookChannel struct {
	Enabled     bool              `toml:"enabled"`
	Method      string            `toml:"method"`
	Headers     map[string]string `toml:"headers"`
	TimeoutSec  int               `toml:"timeout_sec"`
	RefJSONPath string            `toml:"ref_json_path"`
}

// ChannelNames returns supported channel keys in deterministic order.
// Params: none.
// Returns: ordered channel name list.
func ChannelNames() []string {
	return append([]string(nil), channelOrder...)
}

// ChannelEnabled reports whether one channel transport is configured on.
// Params: notify config snapshot and normalized channel key.
// Returns: enabled flag; false for unknown channels.
func ChannelEnabled(cfg NotifyConfig, channel string) bool {
	switch channel {
	case ChannelEmail:
		return cfg.Email.Enabled
	case ChannelSMS:
		return cfg.SMS.Enabled
	case ChannelChat:
		return cfg.Chat.Enabled
	case ChannelWebhook:
		return cfg.Webhook.Enabled
	default:
		return false
	}
}

// IsSupportedChannel reports whether channel key is known.
// Params: normalized channel name.
// Returns: true for supported channels.
func IsSupportedChannel(channel string) bool {
	switch channel {
	case ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook:
		return true
	default:
		return false
	}
}

// NormalizeServiceMode canonicalizes service mode value.
// Params: raw mode string.
// Returns: normalized mode, defaulting to single.
func NormalizeServiceMode(value string) string {
	mode := strings.ToLower(strings.TrimSpace(value))
	if mode == "" {
		return ServiceModeSingle
	}
	return mode
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays non-empty fragment sections onto destination.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Thresholds != (ThresholdsConfig{}) {
		dst.Thresholds = src.Thresholds
	}
	if src.Retention != (RetentionConfig{}) {
		dst.Retention = src.Retention
	}
	if hasMetricsConfig(src.Metrics) {
		dst.Metrics = src.Metrics
	}
	if hasStoreConfig(src.Store) {
		dst.Store = src.Store
	}
	if hasNotifyConfig(src.Notify) {
		dst.Notify = src.Notify
	}
}

// hasMetricsConfig reports whether fragment carries metrics settings.
// Params: metrics section from one fragment.
// Returns: true when any field is set.
func hasMetricsConfig(cfg MetricsConfig) bool {
	return cfg.Source != "" || cfg.BaseURL != "" || cfg.TimeoutSec != 0 ||
		len(cfg.Headers) != 0 || cfg.Prometheus != (PrometheusMetrics{})
}

// hasStoreConfig reports whether fragment carries store settings.
// Params: store section from one fragment.
// Returns: true when any field is set.
func hasStoreConfig(cfg StoreConfig) bool {
	return len(cfg.URL) != 0 || cfg.Bucket != "" || cfg.AllowCreateBuckets
}

// hasNotifyConfig reports whether fragment carries notify settings.
// Params: notify section from one fragment.
// Returns: true when any channel, contact, or routing field is set.
func hasNotifyConfig(cfg NotifyConfig) bool {
	if cfg.Email != (EmailChannel{}) || cfg.SMS != (SMSChannel{}) || cfg.Chat != (ChatChannel{}) {
		return true
	}
	if cfg.Webhook.Enabled || cfg.Webhook.Method != "" || len(cfg.Webhook.Headers) != 0 ||
		cfg.Webhook.TimeoutSec != 0 || cfg.Webhook.RefJSONPath != "" {
		return true
	}
	if len(cfg.Contacts.Emails) != 0 || len(cfg.Contacts.Phones) != 0 ||
		len(cfg.Contacts.ChatIDs) != 0 || len(cfg.Contacts.WebhookURLs) != 0 {
		return true
	}
	if cfg.Routing.RetryDelayMin != 0 {
		return true
	}
	for _, route := range []SeverityRoute{cfg.Routing.Critical, cfg.Routing.Warning, cfg.Routing.Info} {
		if len(route.Channels) != 0 || route.Immediate || route.DelayMin != 0 || route.MaxRetries != 0 {
			return true
		}
	}
	return false
}

// applyDefaults fills unset fields with runtime defaults.
// Params: mutable decoded config.
// Returns: config mutated in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "alertcore"
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if strings.TrimSpace(cfg.Service.OpsListen) == "" {
		cfg.Service.OpsListen = defaultOpsListen
	}
	if cfg.Service.MetricsCheckSec <= 0 {
		cfg.Service.MetricsCheckSec = defaultMetricsCheckSec
	}
	if cfg.Service.HealthCheckSec <= 0 {
		cfg.Service.HealthCheckSec = defaultHealthCheckSec
	}
	if cfg.Service.QueueDrainSec <= 0 {
		cfg.Service.QueueDrainSec = defaultQueueDrainSec
	}
	if cfg.Service.EscalationSweepSec <= 0 {
		cfg.Service.EscalationSweepSec = defaultEscalationSweepSec
	}
	if cfg.Service.CleanupIntervalSec <= 0 {
		cfg.Service.CleanupIntervalSec = defaultCleanupIntervalSec
	}
	if cfg.Service.WindowHours <= 0 {
		cfg.Service.WindowHours = defaultWindowHours
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	fillLogSinkDefaults(&cfg.Log.Console)
	fillLogSinkDefaults(&cfg.Log.File)

	fillThresholdDefaults(&cfg.Thresholds)

	if cfg.Retention.MaxAgeHours <= 0 {
		cfg.Retention.MaxAgeHours = defaultRetentionMaxAgeHours
	}

	if strings.TrimSpace(cfg.Metrics.Source) == "" {
		cfg.Metrics.Source = MetricsSourceHTTP
	}
	if cfg.Metrics.TimeoutSec <= 0 {
		cfg.Metrics.TimeoutSec = 10
	}
	fillPrometheusDefaults(&cfg.Metrics.Prometheus)

	if len(cfg.Store.URL) == 0 {
		cfg.Store.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Store.Bucket) == "" {
		cfg.Store.Bucket = defaultNATSBucket
	}

	fillRoutingDefaults(&cfg.Notify.Routing)
	if cfg.SMSPath() == "" {
		cfg.Notify.SMS.MessageIDPath = "message_id"
	}
	if cfg.Notify.SMS.TimeoutSec <= 0 {
		cfg.Notify.SMS.TimeoutSec = 10
	}
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = 10
	}
	if strings.TrimSpace(cfg.Notify.Webhook.Method) == "" {
		cfg.Notify.Webhook.Method = "POST"
	}
	if cfg.Notify.Email.Port <= 0 {
		cfg.Notify.Email.Port = 587
	}
}

// SMSPath returns trimmed SMS gateway message-id extraction path.
// Params: none.
// Returns: gjson path string.
func (c Config) SMSPath() string {
	return strings.TrimSpace(c.Notify.SMS.MessageIDPath)
}

// fillLogSinkDefaults fills one sink's level/format defaults.
// Params: mutable sink settings.
// Returns: sink mutated in place.
func fillLogSinkDefaults(sink *LogSinkConfig) {
	if strings.TrimSpace(sink.Level) == "" {
		sink.Level = "info"
	}
	if strings.TrimSpace(sink.Format) == "" {
		sink.Format = "line"
	}
}

// fillThresholdDefaults fills unset threshold values.
// Params: mutable thresholds section.
// Returns: thresholds mutated in place; resolve_failure_rate defaults to the
// warning raise threshold (source-symmetric) but stays independently tunable.
func fillThresholdDefaults(t *ThresholdsConfig) {
	if t.WarningFailureRate <= 0 {
		t.WarningFailureRate = defaultWarningFailureRate
	}
	if t.CriticalFailureRate <= 0 {
		t.CriticalFailureRate = defaultCriticalFailureRate
	}
	if t.ServiceFailureRate <= 0 {
		t.ServiceFailureRate = defaultServiceFailureRate
	}
	if t.ServiceCriticalFailureRate <= 0 {
		t.ServiceCriticalFailureRate = defaultServiceCriticalRate
	}
	if t.ServiceMinAttempts <= 0 {
		t.ServiceMinAttempts = defaultServiceMinAttempts
	}
	if t.CriticalErrorCount <= 0 {
		t.CriticalErrorCount = defaultCriticalErrorCount
	}
	if t.StaleValidationMin <= 0 {
		t.StaleValidationMin = defaultStaleValidationMin
	}
	if t.MinActiveServices <= 0 {
		t.MinActiveServices = defaultMinActiveServices
	}
	if t.CooldownMin <= 0 {
		t.CooldownMin = defaultCooldownMin
	}
	if t.EscalationAgeMin <= 0 {
		t.EscalationAgeMin = defaultEscalationAgeMin
	}
	if t.ResolveFailureRate <= 0 {
		t.ResolveFailureRate = t.WarningFailureRate
	}
	if t.ResolveRecentSuccessMin <= 0 {
		t.ResolveRecentSuccessMin = defaultRecentSuccessMin
	}
}

// fillPrometheusDefaults fills scrape mapping defaults.
// Params: mutable prometheus mapping.
// Returns: mapping mutated in place.
func fillPrometheusDefaults(p *PrometheusMetrics) {
	if strings.TrimSpace(p.TotalFamily) == "" {
		p.TotalFamily = "delivery_attempts_total"
	}
	if strings.TrimSpace(p.SuccessFamily) == "" {
		p.SuccessFamily = "delivery_success_total"
	}
	if strings.TrimSpace(p.FailedFamily) == "" {
		p.FailedFamily = "delivery_failed_total"
	}
	if strings.TrimSpace(p.ServiceLabel) == "" {
		p.ServiceLabel = "service"
	}
}

// fillRoutingDefaults fills the static severity routing table.
// Params: mutable routing section.
// Returns: routing mutated in place with the built-in severity table.
func fillRoutingDefaults(r *RoutingConfig) {
	if r.RetryDelayMin <= 0 {
		r.RetryDelayMin = defaultRetryDelayMin
	}
	if len(r.Critical.Channels) == 0 {
		r.Critical = SeverityRoute{
			Channels:   []string{ChannelEmail, ChannelSMS, ChannelChat},
			Immediate:  true,
			MaxRetries: 3,
		}
	}
	if len(r.Warning.Channels) == 0 {
		r.Warning = SeverityRoute{
			Channels:   []string{ChannelEmail, ChannelChat},
			DelayMin:   5,
			MaxRetries: 2,
		}
	}
	if len(r.Info.Channels) == 0 {
		r.Info = SeverityRoute{
			Channels:   []string{ChannelEmail},
			DelayMin:   15,
			MaxRetries: 1,
		}
	}
}

// validateConfig validates one normalized config snapshot.
// Params: config after defaults application.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	switch cfg.Service.Mode {
	case ServiceModeSingle, ServiceModeNATS:
	default:
		return fmt.Errorf("service.mode %q is not supported", cfg.Service.Mode)
	}

	if err := validateLogSink("console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("file", cfg.Log.File, true); err != nil {
		return err
	}

	t := cfg.Thresholds
	if t.WarningFailureRate >= t.CriticalFailureRate {
		return errors.New("thresholds.warning_failure_rate must be below critical_failure_rate")
	}
	if t.CriticalFailureRate > 100 || t.ServiceFailureRate > 100 || t.ResolveFailureRate > 100 {
		return errors.New("thresholds rates must not exceed 100")
	}
	if t.ServiceFailureRate > t.ServiceCriticalFailureRate {
		return errors.New("thresholds.service_failure_rate must not exceed service_critical_failure_rate")
	}

	switch cfg.Metrics.Source {
	case MetricsSourceHTTP, MetricsSourcePrometheus:
	default:
		return fmt.Errorf("metrics.source %q is not supported", cfg.Metrics.Source)
	}
	if strings.TrimSpace(cfg.Metrics.BaseURL) == "" {
		return errors.New("metrics.base_url is required")
	}
	if _, err := url.Parse(cfg.Metrics.BaseURL); err != nil {
		return fmt.Errorf("metrics.base_url is invalid: %w", err)
	}

	if err := validateNotify(cfg.Notify); err != nil {
		return err
	}
	return nil
}

// validateNotify validates routing table and enabled channel transports.
// Params: notify section after defaults.
// Returns: first validation error.
func validateNotify(cfg NotifyConfig) error {
	for severity, route := range map[string]SeverityRoute{
		"critical": cfg.Routing.Critical,
		"warning":  cfg.Routing.Warning,
		"info":     cfg.Routing.Info,
	} {
		if route.MaxRetries < 0 {
			return fmt.Errorf("notify.routing.%s.max_retries must be >= 0", severity)
		}
		for _, channel := range route.Channels {
			if !IsSupportedChannel(strings.ToLower(strings.TrimSpace(channel))) {
				return fmt.Errorf("notify.routing.%s channel %q is not supported", severity, channel)
			}
		}
	}

	if cfg.Email.Enabled {
		if strings.TrimSpace(cfg.Email.Host) == "" {
			return errors.New("notify.email.host is required when email is enabled")
		}
		if strings.TrimSpace(cfg.Email.From) == "" {
			return errors.New("notify.email.from is required when email is enabled")
		}
	}
	if cfg.SMS.Enabled && strings.TrimSpace(cfg.SMS.GatewayURL) == "" {
		return errors.New("notify.sms.gateway_url is required when sms is enabled")
	}
	if cfg.Chat.Enabled && strings.TrimSpace(cfg.Chat.BotToken) == "" {
		return errors.New("notify.chat.bot_token is required when chat is enabled")
	}
	return nil
}

// validateLogSink validates one log sink section.
// Params: sink name, settings, and path requirement flag.
// Returns: validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}
	switch strings.TrimSpace(strings.ToLower(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.%s.level %q is not supported", name, sink.Level)
	}
	switch sink.Format {
	case "line", "json":
	default:
		return fmt.Errorf("log.%s.format %q is not supported", name, sink.Format)
	}
	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("log.%s.path is required", name)
	}
	return nil
}
