// Package config loads compostdash settings from the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "COMPOSTDASH_"

// Auth backends.
const (
	BackendLocal     = "local"
	BackendFederated = "federated"
)

type Config struct {
	HTTP      HTTPConfig
	DBPath    string
	LogLevel  string
	LogFormat string
	Auth      AuthConfig
	IdP       IdPConfig
	Email     EmailConfig
	Backup    BackupConfig
}

type HTTPConfig struct {
	Port          int
	WebDir        string
	BaseURL       string
	SecureCookies bool
	// CSRFKey is 32 bytes, hex encoded in the environment.
	CSRFKey        []byte
	TrustedOrigins []string
	// TrustedProxies may set CF-Connecting-IP and X-Forwarded-For. Empty
	// means the peer address is always the client.
	TrustedProxies []netip.Prefix
}

type AuthConfig struct {
	Backend     string
	SessionTTL  time.Duration
	IdleTimeout time.Duration
	BcryptCost  int
}

type IdPConfig struct {
	BaseURL    string
	APIKey     string
	SigningKey string
	Timeout    time.Duration
}

type EmailConfig struct {
	PostmarkToken string
	FromEmail     string
}

type BackupConfig struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Passphrase    string
	Prefix        string
	Interval      time.Duration
	RetentionDays int
}

// Enabled reports whether enough is set to run backups.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != "" && b.Passphrase != ""
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var p parser

	cfg := Config{
		HTTP: HTTPConfig{
			Port:           p.int("PORT", 8080),
			WebDir:         p.str("WEB_DIR", "web"),
			BaseURL:        p.str("BASE_URL", ""),
			SecureCookies:  p.bool("SECURE_COOKIES", false),
			CSRFKey:        p.hexKey("CSRF_KEY"),
			TrustedOrigins: p.list("TRUSTED_ORIGINS"),
			TrustedProxies: p.prefixes("TRUSTED_PROXIES"),
		},
		DBPath:    p.str("DB_PATH", "compostdash.db"),
		LogLevel:  p.str("LOG_LEVEL", "info"),
		LogFormat: p.str("LOG_FORMAT", "text"),
		Auth: AuthConfig{
			Backend:     strings.ToLower(p.str("AUTH_BACKEND", BackendLocal)),
			SessionTTL:  p.duration("SESSION_TTL", 7*24*time.Hour),
			IdleTimeout: p.duration("IDLE_TIMEOUT", 30*time.Minute),
			BcryptCost:  p.int("BCRYPT_COST", 0),
		},
		IdP: IdPConfig{
			BaseURL:    p.str("IDP_BASE_URL", ""),
			APIKey:     p.str("IDP_API_KEY", ""),
			SigningKey: p.str("IDP_SIGNING_KEY", ""),
			Timeout:    p.duration("IDP_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			PostmarkToken: p.str("POSTMARK_TOKEN", ""),
			FromEmail:     p.str("FROM_EMAIL", "noreply@compostdash.local"),
		},
		Backup: BackupConfig{
			Endpoint:      p.str("S3_ENDPOINT", ""),
			Bucket:        p.str("S3_BUCKET", ""),
			Region:        p.str("S3_REGION", "us-east-1"),
			AccessKey:     p.str("S3_ACCESS_KEY", ""),
			SecretKey:     p.str("S3_SECRET_KEY", ""),
			Passphrase:    p.str("BACKUP_PASSPHRASE", ""),
			Prefix:        p.str("BACKUP_PREFIX", "snapshots/"),
			Interval:      p.duration("BACKUP_INTERVAL", 24*time.Hour),
			RetentionDays: p.int("BACKUP_RETENTION_DAYS", 30),
		},
	}
	if cfg.HTTP.BaseURL == "" {
		cfg.HTTP.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port)
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("%sPORT must be 1-65535, got %d", prefix, c.HTTP.Port))
	}
	if c.HTTP.CSRFKey != nil && len(c.HTTP.CSRFKey) != 32 {
		errs = append(errs, fmt.Errorf("%sCSRF_KEY must be 32 bytes (64 hex characters)", prefix))
	}

	switch c.Auth.Backend {
	case BackendLocal:
	case BackendFederated:
		if c.IdP.BaseURL == "" || c.IdP.APIKey == "" || c.IdP.SigningKey == "" {
			errs = append(errs, fmt.Errorf("federated auth needs %sIDP_BASE_URL, %sIDP_API_KEY and %sIDP_SIGNING_KEY", prefix, prefix, prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%sAUTH_BACKEND must be %q or %q, got %q", prefix, BackendLocal, BackendFederated, c.Auth.Backend))
	}

	if c.Auth.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%sIDLE_TIMEOUT must be positive", prefix))
	}
	if c.Auth.SessionTTL < c.Auth.IdleTimeout {
		errs = append(errs, fmt.Errorf("%sSESSION_TTL must not be shorter than %sIDLE_TIMEOUT", prefix, prefix))
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		errs = append(errs, fmt.Errorf("%sBCRYPT_COST must be 4-31", prefix))
	}

	b := c.Backup
	partial := b.Bucket != "" || b.AccessKey != "" || b.SecretKey != ""
	if partial && !b.Enabled() {
		errs = append(errs, fmt.Errorf("backup needs %sS3_BUCKET, %sS3_ACCESS_KEY, %sS3_SECRET_KEY and %sBACKUP_PASSPHRASE together", prefix, prefix, prefix, prefix))
	}

	return errors.Join(errs...)
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(prefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %q is not an integer", prefix, key, v))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %q is not a boolean", prefix, key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return def
	}
	return d
}

func (p *parser) list(key string) []string {
	v, ok := p.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// prefixes reads a list of CIDRs or bare addresses.
func (p *parser) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, v := range p.list(key) {
		if strings.Contains(v, "/") {
			pfx, err := netip.ParsePrefix(v)
			if err != nil {
				p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
				continue
			}
			out = append(out, pfx.Masked())
			continue
		}
		ip, err := netip.ParseAddr(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
			continue
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out
}

func (p *parser) hexKey(key string) []byte {
	v, ok := p.lookup(key)
	if !ok {
		return nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: not hex: %w", prefix, key, err))
		return nil
	}
	return b
}
