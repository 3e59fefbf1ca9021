package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateRule is one route class ceiling.
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// TrustProxy makes X-Forwarded-For the client identity.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"storage"`

	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled  bool     `yaml:"enabled"`
		Login    RateRule `yaml:"login"`
		Register RateRule `yaml:"register"`
		Reset    RateRule `yaml:"reset"`
		Invite   RateRule `yaml:"invite"`
		Refresh  RateRule `yaml:"refresh"`
	} `yaml:"rate"`

	Registration struct {
		Enabled     bool          `yaml:"enabled"`
		PrivateBeta bool          `yaml:"private_beta"`
		InviteTTL   time.Duration `yaml:"invite_ttl"`
	} `yaml:"registration"`

	Directory struct {
		URL          string        `yaml:"url"`
		SearchBase   string        `yaml:"search_base"`
		SearchFilter string        `yaml:"search_filter"` // {{username}} is replaced, escaped
		BindDN       string        `yaml:"bind_dn"`
		BindPassword string        `yaml:"bind_password"`
		EmailAttr    string        `yaml:"email_attr"`
		NameAttr     string        `yaml:"name_attr"`
		UsernameAttr string        `yaml:"username_attr"`
		StartTLS     bool          `yaml:"start_tls"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"directory"`

	MFA struct {
		Issuer       string        `yaml:"issuer"`
		Skew         uint          `yaml:"skew"`
		BackupCodes  int           `yaml:"backup_codes"`
		TempTokenTTL time.Duration `yaml:"temp_token_ttl"`
	} `yaml:"mfa"`

	Captcha struct {
		SiteKey string `yaml:"site_key"`
	} `yaml:"captcha"`

	Balance struct {
		Enabled      bool  `yaml:"enabled"`
		StartCredits int64 `yaml:"start_credits"`
	} `yaml:"balance"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// SigningSeed is a base64 ed25519 seed. Empty means an ephemeral key.
		SigningSeed string        `yaml:"signing_seed"`
		AccessTTL   time.Duration `yaml:"access_ttl"`
		RefreshTTL  time.Duration `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		ResetTTL      time.Duration `yaml:"reset_ttl"`
		ActivationTTL time.Duration `yaml:"activation_ttl"`
	} `yaml:"auth"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		TLS      string `yaml:"tls"` // auto | starttls | ssl | none
	} `yaml:"smtp"`

	Email struct {
		BaseURL        string `yaml:"base_url"`
		DebugEchoLinks bool   `yaml:"debug_echo_links"`
		PerMinute      int    `yaml:"per_minute"`
	} `yaml:"email"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
		PasswordPolicy     struct {
			MinLength     int  `yaml:"min_length"`
			MaxLength     int  `yaml:"max_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`
}

// Default returns a configuration that runs with in-memory backends.
func Default() *Config {
	var c Config
	c.Registration.Enabled = true
	c.Rate.Enabled = true
	c.applyDefaults()
	return &c
}

// Load reads path (optional), applies defaults and environment overrides,
// then validates. Relative file paths resolve against the YAML directory.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		c.applyDefaults()
		if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && !filepath.IsAbs(p) {
			c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
		}
	}

	c.applyEnvOverrides()

	// never echo links outside dev
	if strings.EqualFold(c.App.Env, "prod") {
		c.Email.DebugEchoLinks = false
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "gatehouse"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "gatehouse"
	}
	defRule(&c.Rate.Login, 7, 5*time.Minute)
	defRule(&c.Rate.Register, 5, time.Hour)
	defRule(&c.Rate.Reset, 2, 2*time.Minute)
	defRule(&c.Rate.Invite, 5, 10*time.Minute)
	defRule(&c.Rate.Refresh, 30, time.Minute)
	if c.Registration.InviteTTL == 0 {
		c.Registration.InviteTTL = 7 * 24 * time.Hour
	}
	if c.Directory.SearchFilter == "" {
		c.Directory.SearchFilter = "(mail={{username}})"
	}
	if c.Directory.EmailAttr == "" {
		c.Directory.EmailAttr = "mail"
	}
	if c.Directory.NameAttr == "" {
		c.Directory.NameAttr = "cn"
	}
	if c.Directory.UsernameAttr == "" {
		c.Directory.UsernameAttr = "uid"
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 5 * time.Second
	}
	if c.MFA.Issuer == "" {
		c.MFA.Issuer = c.App.Name
	}
	if c.MFA.Skew == 0 {
		c.MFA.Skew = 1
	}
	if c.MFA.BackupCodes == 0 {
		c.MFA.BackupCodes = 10
	}
	if c.MFA.TempTokenTTL == 0 {
		c.MFA.TempTokenTTL = 5 * time.Minute
	}
	if c.Balance.StartCredits == 0 {
		c.Balance.StartCredits = 20000
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = c.App.Name
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = 15 * time.Minute
	}
	if c.Auth.ActivationTTL == 0 {
		c.Auth.ActivationTTL = 48 * time.Hour
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Email.PerMinute == 0 {
		c.Email.PerMinute = 60
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.Security.PasswordPolicy.MaxLength == 0 {
		c.Security.PasswordPolicy.MaxLength = 128
	}
}

func defRule(r *RateRule, limit int, window time.Duration) {
	if r.Limit == 0 {
		r.Limit = limit
	}
	if r.Window == 0 {
		r.Window = window
	}
}

// DirectoryEnabled reports directory login mode: both the server URL and the
// search base must be set.
func (c *Config) DirectoryEnabled() bool {
	return strings.TrimSpace(c.Directory.URL) != "" && strings.TrimSpace(c.Directory.SearchBase) != ""
}

// RequiresCaptcha is true when a CAPTCHA site key is configured.
func (c *Config) RequiresCaptcha() bool {
	return strings.TrimSpace(c.Captcha.SiteKey) != ""
}

// Validate rejects combinations that cannot run.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "pg":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required for the redis driver")
	}
	if c.Security.PasswordPolicy.MinLength > c.Security.PasswordPolicy.MaxLength {
		return fmt.Errorf("config: password_policy.min_length exceeds max_length")
	}
	if c.MFA.BackupCodes < 1 {
		return fmt.Errorf("config: mfa.backup_codes must be positive")
	}
	for name, r := range map[string]RateRule{
		"login": c.Rate.Login, "register": c.Rate.Register, "reset": c.Rate.Reset,
		"invite": c.Rate.Invite, "refresh": c.Rate.Refresh,
	} {
		if r.Limit < 1 || r.Window <= 0 {
			return fmt.Errorf("config: rate.%s needs a positive limit and window", name)
		}
	}
	return nil
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
		if _, set := getEnvStr("STORAGE_DRIVER"); !set {
			c.Storage.Driver = "postgres"
		}
	}

	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		if _, set := getEnvStr("CACHE_DRIVER"); !set {
			c.Cache.Driver = "redis"
		}
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("LOGIN_MAX"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvDur("LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvInt("REGISTER_MAX"); ok {
		c.Rate.Register.Limit = v
	}
	if v, ok := getEnvDur("REGISTER_WINDOW"); ok {
		c.Rate.Register.Window = v
	}
	if v, ok := getEnvInt("RESET_PASSWORD_MAX"); ok {
		c.Rate.Reset.Limit = v
	}
	if v, ok := getEnvDur("RESET_PASSWORD_WINDOW"); ok {
		c.Rate.Reset.Window = v
	}

	if v, ok := getEnvBool("ALLOW_REGISTRATION"); ok {
		c.Registration.Enabled = v
	}
	if v, ok := getEnvBool("PRIVATE_BETA"); ok {
		c.Registration.PrivateBeta = v
	}
	if v, ok := getEnvDur("INVITE_TTL"); ok {
		c.Registration.InviteTTL = v
	}

	if v, ok := getEnvStr("LDAP_URL"); ok {
		c.Directory.URL = v
	}
	if v, ok := getEnvStr("LDAP_USER_SEARCH_BASE"); ok {
		c.Directory.SearchBase = v
	}
	if v, ok := getEnvStr("LDAP_SEARCH_FILTER"); ok {
		c.Directory.SearchFilter = v
	}
	if v, ok := getEnvStr("LDAP_BIND_DN"); ok {
		c.Directory.BindDN = v
	}
	if v, ok := getEnvStr("LDAP_BIND_CREDENTIALS"); ok {
		c.Directory.BindPassword = v
	}
	if v, ok := getEnvBool("LDAP_STARTTLS"); ok {
		c.Directory.StartTLS = v
	}

	if v, ok := getEnvStr("CAPTCHA_SITE_KEY"); ok {
		c.Captcha.SiteKey = v
	}
	if v, ok := getEnvBool("CHECK_BALANCE"); ok {
		c.Balance.Enabled = v
	}
	if v, ok := getEnvInt("START_BALANCE"); ok {
		c.Balance.StartCredits = int64(v)
	}

	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_SEED"); ok {
		c.JWT.SigningSeed = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
	if v, ok := getEnvBool("EMAIL_DEBUG_ECHO_LINKS"); ok {
		c.Email.DebugEchoLinks = v
	}

	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvStr("PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}
}
