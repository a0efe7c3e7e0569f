// Package site is a personal website and blog built with Go and Echo.
//
// It serves the home, projects and blog pages from html/template files, keeps
// posts in SQLite, renders post bodies from a small markdown dialect (see the
// markdown package), and lets a single admin write, edit and preview posts
// after logging in. A sitemap, an RSS feed and Prometheus metrics are served
// alongside the pages.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/matdoesdev/site/scaffold"
	"github.com/matdoesdev/site/views"
)

// App is the site application. It wires together the store, cache, image
// sizer, templates, handlers and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Cache    *PostCache
	Views    *views.Set
	Sizer    *ImageSizer
	Metrics  *Metrics
	Projects []Project

	loginLimiter *LoginLimiter
	captcha      CaptchaVerifier
	sizeCache    SizeCache
	sizeFetcher  SizeFetcher
	redis        *redis.Client
	templates    fs.FS
	customRoutes []func(*App)
	started      time.Time
	ready        bool
}

// New creates an App with the given configuration. Nothing is opened until
// Setup or Start.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	a := &App{
		Config:  cfg,
		Echo:    e,
		started: time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the database, loads templates and projects, and registers
// middleware and routes. Start calls it when it has not run yet.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("site: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("site: SessionSecret is required")
	}

	a.Echo.Logger.SetLevel(a.Config.LogLevel)

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("site: init store: %w", err)
	}
	a.Store = store

	a.Metrics = NewMetrics()

	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.Cache.metrics = a.Metrics

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.sizeCache == nil {
		a.sizeCache = a.newSizeCache()
	}
	if a.sizeFetcher == nil {
		a.sizeFetcher = NewHTTPSizeFetcher()
	}
	a.Sizer = NewImageSizer(a.Config.URL, a.sizeCache, a.sizeFetcher, a.Echo.Logger)
	a.Sizer.metrics = a.Metrics

	if a.captcha == nil && a.Config.RecaptchaSecret != "" {
		a.captcha = NewRecaptchaVerifier(a.Config.RecaptchaSecret)
	}
	if a.captcha == nil {
		a.Echo.Logger.Warn("RECAPTCHA_SECRET not set, login captcha disabled")
	}

	if a.templates == nil {
		if a.Config.TemplateDir != "" {
			a.templates = os.DirFS(a.Config.TemplateDir)
		} else {
			a.templates = scaffold.Templates()
		}
	}
	a.Views = views.New(a.templates)
	if err := a.Views.Preload(); err != nil {
		return fmt.Errorf("site: templates: %w", err)
	}

	projects, err := a.loadProjects()
	if err != nil {
		return fmt.Errorf("site: projects: %w", err)
	}
	a.Projects = projects

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.ready = true
	return nil
}

// Start sets the app up if needed and serves HTTP until the server is shut
// down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) newSizeCache() SizeCache {
	if a.Config.RedisAddr == "" {
		return NewMemorySizeCache()
	}
	client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.Echo.Logger.Warnf("redis %s unavailable, caching image sizes in memory: %v", a.Config.RedisAddr, err)
		client.Close()
		return NewMemorySizeCache()
	}
	a.redis = client
	return NewRedisSizeCache(client, 30*24*time.Hour)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets (lazy image loader, base stylesheet) ship inside the
	// binary; everything else comes from the static directory.
	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	assetHandler := echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(assets))))
	e.GET("/assets/*", assetHandler)

	e.Static("/", a.Config.StaticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/rss", a.handleRSS)
	e.GET("/metrics", a.Metrics.Handler())

	// Public pages
	e.GET("/", a.handleIndex)
	e.GET("/projects", a.handleProjects)
	e.GET("/blog", a.handleBlog)
	e.GET("/blog/post/:slug", a.handlePost)

	// Login
	e.GET("/blog/login", a.handleLogin)
	e.POST("/blog/login", a.handleLoginSubmit)
	e.POST("/blog/logout", a.handleLogout)

	// Editor
	e.GET("/blog/new", a.handleNewPost, a.requireAdmin)
	e.POST("/blog/new", a.handleCreatePost, a.requireAdmin)
	e.GET("/blog/edit/:slug", a.handleEditPost, a.requireAdmin)
	e.POST("/blog/edit", a.handleUpdatePost, a.requireAdmin)
	e.POST("/blog/preview", a.handlePreview, a.requireAdmin)
	e.POST("/blog/delete/:slug", a.handleDeletePost, a.requireAdmin)
	e.GET("/blog/images", a.handleImageList, a.requireAdmin)
	e.POST("/blog/images", a.handleImageUpload, a.requireAdmin)
	e.POST("/blog/images/:filename/delete", a.handleImageDelete, a.requireAdmin)
}

// Close releases the database, cache connection and background workers.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Sizer != nil {
		a.Sizer.Wait()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("site: required environment variable %s is not set", key)
	}
	return v
}
