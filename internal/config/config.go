package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/shift-bridge/pkg/core/arbiter"
	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/core/services"
	"github.com/jakechorley/shift-bridge/pkg/scheduler"
)

const (
	configFileName = "shift_bridge_config"

	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SinkLog     = "log"
	SinkRedis   = "redis"
	SinkMQTT    = "mqtt"
	SinkWebhook = "webhook"

	defaultTurnaroundMinutes = 60
	defaultReleaseLeadHours  = 24
	defaultReminderLeadHours = 24
	defaultReminderWindow    = 15
)

// SchedulerConfig controls the periodic tick runner
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tickInterval" validate:"min=1s"`
	RetryBase    time.Duration `yaml:"retryBase" validate:"min=1s"`
	MaxBackoff   time.Duration `yaml:"maxBackoff" validate:"gtefield=RetryBase"`
	// LockTTL enables the Redis lock when set. A cycle is cut off when its lease runs out.
	LockTTL time.Duration `yaml:"lockTTL,omitempty" validate:"omitempty,min=1s"`
	LockKey string        `yaml:"lockKey,omitempty"`
}

// ReminderConfig positions the unfilled-shift reminder window
type ReminderConfig struct {
	LeadHours     int `yaml:"leadHours" validate:"min=1"`
	WindowMinutes int `yaml:"windowMinutes" validate:"min=1"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"`
	ClientID    string `yaml:"clientID,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topicPrefix,omitempty"`
	QoS         byte   `yaml:"qos,omitempty" validate:"max=2"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url,omitempty" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retries int           `yaml:"retries,omitempty" validate:"min=0"`
}

// EventsConfig selects the sinks lifecycle events are fanned out to
type EventsConfig struct {
	Sinks       []string      `yaml:"sinks,omitempty" validate:"dive,oneof=log redis mqtt webhook"`
	RedisStream string        `yaml:"redisStream,omitempty"`
	RedisMaxLen int64         `yaml:"redisMaxLen,omitempty" validate:"min=0"`
	MQTT        MQTTConfig    `yaml:"mqtt,omitempty"`
	Webhook     WebhookConfig `yaml:"webhook,omitempty"`
}

// RecurringTemplate defines shifts posted on every date of an RRULE
type RecurringTemplate struct {
	Name             string `yaml:"name" validate:"required"`
	FacilityID       string `yaml:"facilityID" validate:"required"`
	RRule            string `yaml:"rrule" validate:"required"`
	Start            string `yaml:"start" validate:"required,datetime=15:04"`
	End              string `yaml:"end" validate:"required,datetime=15:04"`
	Role             string `yaml:"role" validate:"required"`
	Visibility       string `yaml:"visibility" validate:"required,oneof=internal agency all tiered"`
	Notes            string `yaml:"notes,omitempty"`
	IsPremium        bool   `yaml:"isPremium,omitempty"`
	PremiumNotes     string `yaml:"premiumNotes,omitempty"`
	ReleaseLeadHours int    `yaml:"releaseLeadHours,omitempty" validate:"min=0"`
}

// Config represents the application configuration
type Config struct {
	Store                     string              `yaml:"store" validate:"oneof=postgres memory"`
	DatabaseURL               string              `yaml:"databaseURL,omitempty" validate:"required_if=Store postgres"`
	RedisURL                  string              `yaml:"redisURL,omitempty" validate:"omitempty,url"`
	// TurnaroundMinutes of 0 disables back-to-back warnings; unset means the default
	TurnaroundMinutes         *int                `yaml:"turnaroundMinutes" validate:"omitempty,min=0,max=10080"`
	BlockOnClaimConflict      bool                `yaml:"blockOnClaimConflict"`
	BlockOnApprovalConflict   bool                `yaml:"blockOnApprovalConflict"`
	IncludePendingCommitments bool                `yaml:"includePendingCommitments"`
	Scheduler                 SchedulerConfig     `yaml:"scheduler"`
	Reminder                  ReminderConfig      `yaml:"reminder"`
	Events                    EventsConfig        `yaml:"events"`
	RecurringTemplates        []RecurringTemplate `yaml:"recurringTemplates,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from shift_bridge_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv prefers shift_bridge_config.<env>.yaml over the shared file when it exists
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset field that has a default
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.TurnaroundMinutes == nil {
		minutes := defaultTurnaroundMinutes
		c.TurnaroundMinutes = &minutes
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = scheduler.DefaultInterval
	}
	if c.Scheduler.RetryBase == 0 {
		c.Scheduler.RetryBase = scheduler.DefaultRetryBase
	}
	if c.Scheduler.MaxBackoff == 0 {
		c.Scheduler.MaxBackoff = scheduler.DefaultMaxBackoff
	}
	if c.Scheduler.LockKey == "" {
		c.Scheduler.LockKey = "shift-bridge:scheduler"
	}
	if c.Reminder.LeadHours == 0 {
		c.Reminder.LeadHours = defaultReminderLeadHours
	}
	if c.Reminder.WindowMinutes == 0 {
		c.Reminder.WindowMinutes = defaultReminderWindow
	}
	if len(c.Events.Sinks) == 0 {
		c.Events.Sinks = []string{SinkLog}
	}
	if c.Events.RedisStream == "" {
		c.Events.RedisStream = "shift-bridge:events"
	}
	if c.Events.MQTT.ClientID == "" {
		c.Events.MQTT.ClientID = "shift-bridge"
	}
	if c.Events.MQTT.TopicPrefix == "" {
		c.Events.MQTT.TopicPrefix = "shift-bridge"
	}
	if c.Events.Webhook.Timeout == 0 {
		c.Events.Webhook.Timeout = 10 * time.Second
	}
	for i := range c.RecurringTemplates {
		t := &c.RecurringTemplates[i]
		if t.Visibility == string(model.VisibilityTiered) && t.ReleaseLeadHours == 0 {
			t.ReleaseLeadHours = defaultReleaseLeadHours
		}
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for _, sink := range cfg.Events.Sinks {
		switch sink {
		case SinkRedis:
			if cfg.RedisURL == "" {
				return fmt.Errorf("config validation failed: redis sink requires redisURL")
			}
		case SinkMQTT:
			if cfg.Events.MQTT.Broker == "" {
				return fmt.Errorf("config validation failed: mqtt sink requires events.mqtt.broker")
			}
		case SinkWebhook:
			if cfg.Events.Webhook.URL == "" {
				return fmt.Errorf("config validation failed: webhook sink requires events.webhook.url")
			}
		}
	}

	if cfg.Scheduler.LockTTL > 0 && cfg.RedisURL == "" {
		return fmt.Errorf("config validation failed: scheduler.lockTTL requires redisURL")
	}
	if cfg.Scheduler.LockTTL > cfg.Scheduler.TickInterval {
		return fmt.Errorf("config validation failed: scheduler.lockTTL %s exceeds tickInterval %s", cfg.Scheduler.LockTTL, cfg.Scheduler.TickInterval)
	}

	names := map[string]bool{}
	for i, tmpl := range cfg.RecurringTemplates {
		if names[tmpl.Name] {
			return fmt.Errorf("duplicate recurring template name %q", tmpl.Name)
		}
		names[tmpl.Name] = true

		if _, err := rrule.StrToRRule(tmpl.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recurringTemplates[%d]: %w", i, err)
		}
		if _, err := tmpl.ToTemplate(); err != nil {
			return fmt.Errorf("invalid recurringTemplates[%d]: %w", i, err)
		}
	}

	return nil
}

// ToTemplate converts the YAML form into the service template
func (t RecurringTemplate) ToTemplate() (services.RecurringTemplate, error) {
	start, err := model.ParseTimeOfDay(t.Start)
	if err != nil {
		return services.RecurringTemplate{}, err
	}
	end, err := model.ParseTimeOfDay(t.End)
	if err != nil {
		return services.RecurringTemplate{}, err
	}
	if start >= end {
		return services.RecurringTemplate{}, fmt.Errorf("start %s must be before end %s", t.Start, t.End)
	}

	return services.RecurringTemplate{
		Name:         t.Name,
		FacilityID:   t.FacilityID,
		RRule:        t.RRule,
		Start:        start,
		End:          end,
		Role:         t.Role,
		Visibility:   model.Visibility(t.Visibility),
		Notes:        t.Notes,
		IsPremium:    t.IsPremium,
		PremiumNotes: t.PremiumNotes,
		ReleaseLead:  time.Duration(t.ReleaseLeadHours) * time.Hour,
	}, nil
}

// Template returns the named recurring template
func (c *Config) Template(name string) (services.RecurringTemplate, error) {
	for _, t := range c.RecurringTemplates {
		if t.Name == name {
			return t.ToTemplate()
		}
	}
	return services.RecurringTemplate{}, fmt.Errorf("recurring template %q not found in config", name)
}

// Policy returns the arbiter's conflict policy
func (c *Config) Policy() arbiter.Policy {
	return arbiter.Policy{
		BlockOnClaimConflict:      c.BlockOnClaimConflict,
		BlockOnApprovalConflict:   c.BlockOnApprovalConflict,
		IncludePendingCommitments: c.IncludePendingCommitments,
	}
}

// Turnaround returns the configured back-to-back threshold
func (c *Config) Turnaround() time.Duration {
	if c.TurnaroundMinutes == nil {
		return defaultTurnaroundMinutes * time.Minute
	}
	return time.Duration(*c.TurnaroundMinutes) * time.Minute
}

// Checker returns a conflict checker using the configured turnaround
func (c *Config) Checker() conflicts.Checker {
	return conflicts.NewChecker(c.Turnaround())
}

// ReminderWindow returns the reminder tick's window
func (c *Config) ReminderWindow() services.ReminderWindow {
	return services.ReminderWindow{
		Lead:  time.Duration(c.Reminder.LeadHours) * time.Hour,
		Slack: time.Duration(c.Reminder.WindowMinutes) * time.Minute,
	}
}

// SchedulerOptions returns the runner timing. The lock is attached by the caller.
func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		Interval:   c.Scheduler.TickInterval,
		RetryBase:  c.Scheduler.RetryBase,
		MaxBackoff: c.Scheduler.MaxBackoff,
		// a cycle must finish while its lease is still held
		CycleTimeout: c.Scheduler.LockTTL,
	}
}

// findConfigFile searches the current directory then the home directory,
// preferring the env-specific file in each
func findConfigFile(env string) (string, error) {
	candidates := []string{}
	if env != "" {
		candidates = append(candidates, fmt.Sprintf("%s.%s.yaml", configFileName, env))
	}
	candidates = append(candidates, configFileName+".yaml")

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, name := range candidates {
		homeConfigPath := filepath.Join(homeDir, name)
		if _, err := os.Stat(homeConfigPath); err == nil {
			return homeConfigPath, nil
		}
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
