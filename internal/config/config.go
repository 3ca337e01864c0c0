package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to build and deliver the digest.
type Config struct {
	Moogsoft MoogsoftConfig `yaml:"moogsoft"`
	Report   ReportConfig   `yaml:"report"`
	Rules    RulesConfig    `yaml:"rules"`
	Mail     MailConfig     `yaml:"mail"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MoogsoftConfig configures access to the monitoring platform REST API.
type MoogsoftConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"pageSize"`
	Paths    MoogsoftPaths `yaml:"paths"`
	// InboundQueries are the query strings, one request each, used to list inbound integrations.
	InboundQueries []string `yaml:"inboundQueries"`
	AuditServices  []string `yaml:"auditServices"`
}

// MoogsoftPaths lists endpoint paths relative to BaseURL. "{id}" is replaced
// by the integration id.
type MoogsoftPaths struct {
	Alerts             string `yaml:"alerts"`
	Incidents          string `yaml:"incidents"`
	Statistics         string `yaml:"statistics"`
	Audits             string `yaml:"audits"`
	Catalogs           string `yaml:"catalogs"`
	Inbound            string `yaml:"inbound"`
	InboundErrors      string `yaml:"inboundErrors"`
	Outbound           string `yaml:"outbound"`
	OutboundErrors     string `yaml:"outboundErrors"`
	MaintenanceWindows string `yaml:"maintenanceWindows"`
	ExpiredOccurrences string `yaml:"expiredOccurrences"`
}

// ReportConfig controls report composition.
type ReportConfig struct {
	Subject               string        `yaml:"subject"`
	Timezone              string        `yaml:"timezone"`
	RecentWindow          time.Duration `yaml:"recentWindow"`
	CatalogLimit          int           `yaml:"catalogLimit"`
	MaintenanceAlertLimit int           `yaml:"maintenanceAlertLimit"`
	Workers               int           `yaml:"workers"`
	UnitTimeout           time.Duration `yaml:"unitTimeout"`
	TemplatePath          string        `yaml:"templatePath"`
}

// RulesConfig points at the manager rule table.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// MailConfig configures SMTP delivery.
type MailConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	StartTLS bool          `yaml:"startTLS"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig controls the Valkey store used to claim one run per day.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ClaimTTL     time.Duration `yaml:"claimTTL"`
}

// MetricsConfig controls the Pushgateway hand-off after each run.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayURL"`
	Job            string `yaml:"job"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads an optional dotenv file, then the YAML file, then environment overrides.
func Load(path, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load dotenv %s: %w", dotenvPath, err)
		}
	}
	if path == "" {
		path = os.Getenv("MIRADOR_DIGEST_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Validate checks the settings required to query the platform.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Moogsoft.BaseURL) == "" {
		errs = append(errs, errors.New("moogsoft.baseURL is required"))
	}
	if strings.TrimSpace(c.Moogsoft.APIKey) == "" {
		errs = append(errs, errors.New("moogsoft.apiKey is required"))
	}
	if c.Moogsoft.PageSize <= 0 {
		errs = append(errs, errors.New("moogsoft.pageSize must be positive"))
	}
	seen := make(map[string]struct{}, len(c.Moogsoft.AuditServices))
	for _, svc := range c.Moogsoft.AuditServices {
		if _, dup := seen[svc]; dup {
			errs = append(errs, fmt.Errorf("moogsoft.auditServices lists %q twice", svc))
		}
		seen[svc] = struct{}{}
	}
	if c.Report.RecentWindow <= 0 {
		errs = append(errs, errors.New("report.recentWindow must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateMail checks the settings required to deliver the digest.
func (c *Config) ValidateMail() error {
	var errs []error
	if c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required"))
	}
	if c.Mail.From == "" {
		errs = append(errs, errors.New("mail.from is required"))
	}
	if len(c.Mail.To) == 0 {
		errs = append(errs, errors.New("mail.to needs at least one recipient"))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Moogsoft: MoogsoftConfig{
			BaseURL:  "https://api.moogsoft.ai",
			Timeout:  30 * time.Second,
			PageSize: 5000,
			Paths: MoogsoftPaths{
				Alerts:             "/v1/alerts",
				Incidents:          "/v1/incidents",
				Statistics:         "/v2/stats/overview",
				Audits:             "/v1/audits",
				Catalogs:           "/v2/catalogs",
				Inbound:            "/v1/integrations/byoapi",
				InboundErrors:      "/v1/integrations/byoapi/{id}/errors",
				Outbound:           "/v2/integrations/webhooks/items",
				OutboundErrors:     "/v2/integrations/webhooks/logs/{id}",
				MaintenanceWindows: "/v1/maintenance/windows",
				ExpiredOccurrences: "/v1/maintenance/occurrences/expired",
			},
			InboundQueries: []string{
				"",
				"integration=DYNATRACE",
				"integration=NAGIOS",
				"integration=PROMETHEUS",
			},
			AuditServices: []string{
				"ums-apikey", "ums-sso", "ums-role", "maintenance-windows",
				"catalogs", "workflows", "correlation-engine", "correlation-engine-webserver",
				"webhooks", "notification-policies", "byoapi",
			},
		},
		Report: ReportConfig{
			Subject:               "Moogsoft Daily Consolidated Report",
			Timezone:              "IST+05:30",
			RecentWindow:          24 * time.Hour,
			CatalogLimit:          5,
			MaintenanceAlertLimit: 10,
			Workers:               4,
			UnitTimeout:           15 * time.Second,
		},
		Rules: RulesConfig{Path: "configs/rules.yaml"},
		Mail: MailConfig{
			Port:     587,
			StartTLS: true,
			Timeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ClaimTTL:     36 * time.Hour,
		},
		Metrics: MetricsConfig{Job: "mirador_digest"},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOOGSOFT_BASE_URL"); v != "" {
		cfg.Moogsoft.BaseURL = v
	}
	if v := os.Getenv("MOOGSOFT_API_KEY"); v != "" {
		cfg.Moogsoft.APIKey = v
	}
	if v := os.Getenv("MOOGSOFT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Moogsoft.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_DIGEST_TIMEZONE"); v != "" {
		cfg.Report.Timezone = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Report.Workers = n
		}
	}
	if v := os.Getenv("MIRADOR_DIGEST_TEMPLATE"); v != "" {
		cfg.Report.TemplatePath = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("MAIL_FROM"); v != "" {
		cfg.Mail.From = v
	}
	if v := os.Getenv("MAIL_TO"); v != "" {
		cfg.Mail.To = splitList(v)
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_DIGEST_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_DIGEST_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_DIGEST_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
