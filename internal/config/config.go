package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Subho98799/nagar/internal/escalation"
	"github.com/Subho98799/nagar/internal/gate"
	"github.com/Subho98799/nagar/internal/llm"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Type       string `yaml:"type"` // "sqlite" or "postgres"
		URL        string `yaml:"url"`  // SQLite path or PostgreSQL URL
		Migrations string `yaml:"migrations"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Identity struct {
		Salt string `yaml:"salt"`
	} `yaml:"identity"`

	Gate struct {
		DuplicateRadiusMeters     float64       `yaml:"duplicate_radius_meters"`
		DuplicateWindow           time.Duration `yaml:"duplicate_window"`
		DuplicateOverlapThreshold float64       `yaml:"duplicate_overlap_threshold"`
		RateLimitCount            int           `yaml:"rate_limit_count"`
		RateLimitWindow           time.Duration `yaml:"rate_limit_window"`
	} `yaml:"gate"`

	Escalation struct {
		PriorityThreshold int `yaml:"priority_threshold"`
		PersistenceHours  int `yaml:"persistence_hours"`
		LocalityCount     int `yaml:"locality_count"`
	} `yaml:"escalation"`

	AI struct {
		Enabled                 bool                 `yaml:"enabled"`
		Timeout                 time.Duration        `yaml:"timeout"`
		Providers               []llm.ProviderConfig `yaml:"providers"`
		MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`
	} `yaml:"ai"`
}

// LoadConfig loads configuration from YAML file, fills defaults and then
// applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.setDefaults()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Expand environment variables in secrets
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Identity.Salt = os.ExpandEnv(config.Identity.Salt)
	for i := range config.AI.Providers {
		config.AI.Providers[i].APIKey = os.ExpandEnv(config.AI.Providers[i].APIKey)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Type == "sqlite" {
		c.Database.URL = "./data/nagar.db"
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = "migrations"
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}

	g := gate.DefaultConfig()
	if c.Gate.DuplicateRadiusMeters == 0 {
		c.Gate.DuplicateRadiusMeters = g.DuplicateRadiusMeters
	}
	if c.Gate.DuplicateWindow == 0 {
		c.Gate.DuplicateWindow = g.DuplicateWindow
	}
	if c.Gate.DuplicateOverlapThreshold == 0 {
		c.Gate.DuplicateOverlapThreshold = g.OverlapThreshold
	}
	if c.Gate.RateLimitCount == 0 {
		c.Gate.RateLimitCount = g.RateLimitCount
	}
	if c.Gate.RateLimitWindow == 0 {
		c.Gate.RateLimitWindow = g.RateLimitWindow
	}

	e := escalation.DefaultConfig()
	if c.Escalation.PriorityThreshold == 0 {
		c.Escalation.PriorityThreshold = e.PriorityThreshold
	}
	if c.Escalation.PersistenceHours == 0 {
		c.Escalation.PersistenceHours = e.PersistenceHours
	}
	if c.Escalation.LocalityCount == 0 {
		c.Escalation.LocalityCount = e.LocalityCount
	}

	if c.AI.Timeout == 0 {
		c.AI.Timeout = llm.DefaultTimeout
	}
	if c.AI.MaxFailuresBeforeSwitch == 0 {
		c.AI.MaxFailuresBeforeSwitch = 3
	}
}

// applyEnv overrides file values. A malformed value is an error rather than a
// silent fallback to the default.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []string
	parseFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	parseInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	parseDuration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	parseFloat("NAGAR_DUPLICATE_RADIUS_METERS", &c.Gate.DuplicateRadiusMeters)
	parseDuration("NAGAR_DUPLICATE_WINDOW", &c.Gate.DuplicateWindow)
	parseFloat("NAGAR_DUPLICATE_OVERLAP_THRESHOLD", &c.Gate.DuplicateOverlapThreshold)
	parseInt("NAGAR_RATE_LIMIT_COUNT", &c.Gate.RateLimitCount)
	parseDuration("NAGAR_RATE_LIMIT_WINDOW", &c.Gate.RateLimitWindow)
	parseInt("NAGAR_ESCALATION_PRIORITY_THRESHOLD", &c.Escalation.PriorityThreshold)
	parseInt("NAGAR_ESCALATION_PERSISTENCE_HOURS", &c.Escalation.PersistenceHours)
	parseInt("NAGAR_ESCALATION_LOCALITY_COUNT", &c.Escalation.LocalityCount)
	parseDuration("NAGAR_AI_TIMEOUT", &c.AI.Timeout)

	setString("DATABASE_URL", &c.Database.URL)
	setString("DATABASE_TYPE", &c.Database.Type)
	setString("NAGAR_JWT_SECRET", &c.Auth.JWTSecret)
	setString("NAGAR_IDENTITY_SALT", &c.Identity.Salt)
	setString("PORT", &c.Server.Port)

	if key, ok := get("GEMINI_API_KEY"); ok {
		c.AI.Enabled = true
		found := false
		for i := range c.AI.Providers {
			if c.AI.Providers[i].Type == llm.ProviderGemini && c.AI.Providers[i].APIKey == "" {
				c.AI.Providers[i].APIKey = key
				found = true
			}
		}
		if !found && !c.hasProvider(llm.ProviderGemini) {
			c.AI.Providers = append(c.AI.Providers, llm.ProviderConfig{
				Type:              llm.ProviderGemini,
				APIKey:            key,
				RequestsPerMinute: 8,
			})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment override: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) hasProvider(t llm.ProviderType) bool {
	for _, p := range c.AI.Providers {
		if p.Type == t {
			return true
		}
	}
	return false
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required for %s", c.Database.Type)
	}
	if c.Gate.DuplicateRadiusMeters < 0 || c.Gate.DuplicateWindow < 0 || c.Gate.RateLimitWindow < 0 {
		return fmt.Errorf("gate thresholds must not be negative")
	}
	if t := c.Gate.DuplicateOverlapThreshold; t < 0 || t > 1 {
		return fmt.Errorf("gate.duplicate_overlap_threshold must be within [0,1], got %v", t)
	}
	if c.Gate.RateLimitCount < 0 {
		return fmt.Errorf("gate.rate_limit_count must not be negative")
	}
	if c.Escalation.PriorityThreshold < 0 || c.Escalation.PriorityThreshold > 100 {
		return fmt.Errorf("escalation.priority_threshold must be within [0,100], got %d", c.Escalation.PriorityThreshold)
	}
	if c.Escalation.PersistenceHours < 0 || c.Escalation.LocalityCount < 0 {
		return fmt.Errorf("escalation thresholds must not be negative")
	}
	return nil
}

// GateConfig converts the gate section.
func (c *Config) GateConfig() gate.Config {
	return gate.Config{
		DuplicateRadiusMeters: c.Gate.DuplicateRadiusMeters,
		DuplicateWindow:       c.Gate.DuplicateWindow,
		OverlapThreshold:      c.Gate.DuplicateOverlapThreshold,
		RateLimitCount:        c.Gate.RateLimitCount,
		RateLimitWindow:       c.Gate.RateLimitWindow,
	}
}

// EscalationConfig converts the escalation section.
func (c *Config) EscalationConfig() escalation.Config {
	return escalation.Config{
		PriorityThreshold: c.Escalation.PriorityThreshold,
		PersistenceHours:  c.Escalation.PersistenceHours,
		LocalityCount:     c.Escalation.LocalityCount,
	}
}

// ProvidersConfig converts the ai section for llm.NewMultiProviderClient.
func (c *Config) ProvidersConfig() llm.MultiProviderConfig {
	return llm.MultiProviderConfig{
		Providers:   c.AI.Providers,
		MaxFailures: c.AI.MaxFailuresBeforeSwitch,
	}
}
