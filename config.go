package site

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

// SiteConfig holds all configuration for the site.
type SiteConfig struct {
	Name        string // Site name (default "mat does dev")
	URL         string // Canonical base URL (default "https://matdoes.dev")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD and RSS

	Addr         string // Listen address (default ":8080")
	DatabasePath string // SQLite path (default "data/site.db")
	StaticDir    string // Static files served at / (default "website")
	TemplateDir  string // Page templates; empty uses the embedded set
	ProjectsPath string // Projects file, YAML or JSON (default "website/projects.json")

	AdminUsername string // Admin login name (default "admin")
	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session signing secret
	CookieSecure  bool   // Set true for HTTPS

	RecaptchaSecret  string // Login captcha is skipped when empty
	RecaptchaSiteKey string

	RedisAddr string // Image size cache; in-memory when empty

	LogLevel     log.Lvl
	PostCacheTTL time.Duration // Post cache TTL (default 5min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "mat does dev"
	}
	if c.URL == "" {
		c.URL = "https://matdoes.dev"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/site.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "website"
	}
	if c.ProjectsPath == "" {
		c.ProjectsPath = "website/projects.json"
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.LogLevel == 0 {
		c.LogLevel = log.INFO
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

// LoadConfig reads the configuration from the environment after loading an
// optional .env file from the working directory.
func LoadConfig() (SiteConfig, error) {
	_ = godotenv.Load()

	cfg := SiteConfig{
		Name:             os.Getenv("SITE_NAME"),
		URL:              os.Getenv("SITE_URL"),
		Description:      os.Getenv("SITE_DESCRIPTION"),
		Author:           os.Getenv("SITE_AUTHOR"),
		Addr:             os.Getenv("ADDR"),
		DatabasePath:     os.Getenv("DATABASE_PATH"),
		StaticDir:        os.Getenv("STATIC_DIR"),
		TemplateDir:      os.Getenv("TEMPLATE_DIR"),
		ProjectsPath:     os.Getenv("PROJECTS_PATH"),
		AdminUsername:    os.Getenv("ADMIN_USERNAME"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		SessionSecret:    os.Getenv("ADMIN_SESSION_SECRET"),
		CookieSecure:     EnvOr("COOKIE_SECURE", "false") == "true",
		RecaptchaSecret:  os.Getenv("RECAPTCHA_SECRET"),
		RecaptchaSiteKey: os.Getenv("RECAPTCHA_SITE_KEY"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := ParseLogLevel(v)
		if err != nil {
			return SiteConfig{}, err
		}
		cfg.LogLevel = lvl
	}
	if v := os.Getenv("POST_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("site: POST_CACHE_TTL: %w", err)
		}
		cfg.PostCacheTTL = ttl
	}
	cfg.setDefaults()
	return cfg, nil
}

// ParseLogLevel maps debug, info, warn, error and off to a logger level.
func ParseLogLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return 0, fmt.Errorf("site: unknown log level %q", s)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes. The callback runs at the end
// of Setup.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir overrides the static file directory.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}

// WithTemplates sets the file system page templates are loaded from.
func WithTemplates(fsys fs.FS) Option {
	return func(a *App) {
		a.templates = fsys
	}
}

// WithCaptchaVerifier replaces the reCAPTCHA verifier used on login.
func WithCaptchaVerifier(v CaptchaVerifier) Option {
	return func(a *App) {
		a.captcha = v
	}
}

// WithImageSizeFetcher replaces how remote image sizes are looked up.
func WithImageSizeFetcher(f SizeFetcher) Option {
	return func(a *App) {
		a.sizeFetcher = f
	}
}

// WithImageSizeCache replaces where image sizes are cached.
func WithImageSizeCache(c SizeCache) Option {
	return func(a *App) {
		a.sizeCache = c
	}
}
