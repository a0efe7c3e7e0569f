package site

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "hunter2"

type stubCaptcha struct{ ok bool }

func (s stubCaptcha) Verify(context.Context, string, string) (bool, error) {
	return s.ok, nil
}

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := SiteConfig{
		Name:          "mat does dev",
		URL:           "https://matdoes.dev",
		Description:   "a test site",
		Author:        "mat",
		DatabasePath:  filepath.Join(dir, "site.db"),
		StaticDir:     filepath.Join(dir, "website"),
		ProjectsPath:  filepath.Join(dir, "projects.json"),
		AdminUsername: "admin",
		AdminPassword: testPassword,
		SessionSecret: "test-session-secret",
		LogLevel:      log.OFF,
	}
	fetcher := &countingFetcher{size: ImageSize{Width: 800, Height: 600}}
	opts = append([]Option{WithImageSizeFetcher(fetcher)}, opts...)
	app := New(cfg, opts...)
	require.NoError(t, app.Setup())
	t.Cleanup(func() { app.Close() })
	return app
}

// testClient replays cookies between requests the way a browser would.
type testClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, app *App) *testClient {
	return &testClient{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	tc.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(tc.cookies, c.Name)
			continue
		}
		tc.cookies[c.Name] = c
	}
	return rec
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// csrf returns the form token, visiting a /blog page first if no token
// cookie has been issued yet.
func (tc *testClient) csrf() string {
	if _, ok := tc.cookies["_csrf"]; !ok {
		tc.get("/blog/login")
	}
	c, ok := tc.cookies["_csrf"]
	require.True(tc.t, ok, "no _csrf cookie issued")
	return c.Value
}

func (tc *testClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", tc.csrf())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return tc.do(req)
}

func (tc *testClient) login() {
	rec := tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {testPassword}})
	require.Equal(tc.t, http.StatusFound, rec.Code, rec.Body.String())
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	for _, path := range []string{"/", "/projects", "/blog"} {
		rec := tc.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
		assert.Contains(t, rec.Body.String(), "mat does dev", path)
	}

	rec := tc.get("/projects")
	assert.Contains(t, rec.Body.String(), "repl.it bots")
	assert.Equal(t, "public, max-age=300", tc.get("/").Header().Get("Cache-Control"))
}

func TestEmbeddedAssets(t *testing.T) {
	app := newTestApp(t)
	rec := newTestClient(t, app).get("/assets/lazy.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=604800", rec.Header().Get("Cache-Control"))
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	rec := tc.get("/blog/post/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post not found")

	rec = tc.get("/no-such-page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}

func TestPathRedirects(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	rec := tc.get("/" + strings.Repeat("a", maxPathLength+1))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/nou", rec.Header().Get("Location"))

	rec = tc.get("/blog/")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/blog", rec.Header().Get("Location"))
}

func TestWellKnownCORS(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/anything", nil)
	req.Header.Set("Origin", "https://other.example")
	rec := tc.do(req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = tc.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEditorRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	rec := tc.get("/blog/new")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/blog/login?ref=%2Fblog%2Fnew", rec.Header().Get("Location"))

	rec = tc.post("/blog/new", url.Values{"title": {"x"}, "body": {"y"}})
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/blog/login", rec.Header().Get("Location"))

	posts, err := app.Store.ListPosts(true)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)

	rec := tc.get("/blog/login?ref=/blog/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `name="_csrf"`)

	rec = tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {"wrong"}, "ref": {"/blog/new"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong username or password.")

	rec = tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {testPassword}, "ref": {"/blog/new"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blog/new", rec.Header().Get("Location"))

	rec = tc.get("/blog/new")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "New post")

	rec = tc.get("/blog/login")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blog", rec.Header().Get("Location"))

	rec = tc.post("/blog/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusTemporaryRedirect, tc.get("/blog/new").Code)
}

func TestLoginRejectsOpenRedirect(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)
	rec := tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {testPassword}, "ref": {"//evil.example"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blog", rec.Header().Get("Location"))
}

func TestLoginRequiresCSRF(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)
	req := httptest.NewRequest(http.MethodPost, "/blog/login",
		strings.NewReader(url.Values{"username": {"admin"}, "password": {testPassword}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := tc.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or missing form token")
}

func TestLoginRateLimit(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)
	bad := url.Values{"username": {"admin"}, "password": {"nope"}}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, tc.post("/blog/login", bad).Code)
	}
	rec := tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {testPassword}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many login attempts")
}

func TestLoginCaptcha(t *testing.T) {
	app := newTestApp(t, WithCaptchaVerifier(stubCaptcha{ok: false}))
	tc := newTestClient(t, app)
	rec := tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {testPassword}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Captcha check failed.")

	app = newTestApp(t, WithCaptchaVerifier(stubCaptcha{ok: true}))
	tc = newTestClient(t, app)
	tc.login()
}

func TestPostLifecycle(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()
	visitor := newTestClient(t, app)

	rec := admin.post("/blog/new", url.Values{
		"title": {"Hello World"},
		"body":  {"hi **there**\r\n![cat](/uploads/cat.jpg)"},
		"tags":  {"Go, web, "},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/blog/post/hello-world", rec.Header().Get("Location"))

	post, err := app.Store.GetPost("hello-world")
	require.NoError(t, err)
	assert.Equal(t, "admin", post.Author)
	assert.Equal(t, []string{"go", "web"}, post.Tags)
	assert.Equal(t, "hi **there**\n![cat](/uploads/cat.jpg)", post.Content)
	require.NotNil(t, post.Image)
	assert.Equal(t, "https://matdoes.dev/uploads/cat.jpg", post.Image.URL)

	rec = visitor.get("/blog/post/hello-world")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<b>there</b>")
	assert.Contains(t, rec.Body.String(), `"@type":"BlogPosting"`)
	assert.Contains(t, visitor.get("/blog").Body.String(), "Hello World")

	rec = admin.post("/blog/new", url.Values{"title": {"Hello World"}, "body": {"again"}})
	assert.Equal(t, "/blog/post/hello-world-2", rec.Header().Get("Location"))

	rec = admin.get("/blog/edit/hello-world")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Edit post")

	rec = admin.post("/blog/edit", url.Values{
		"slug":     {"hello-world"},
		"title":    {"Changed Title"},
		"body":     {"new body"},
		"unlisted": {"on"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blog/edit/hello-world", rec.Header().Get("Location"))

	updated, err := app.Store.GetPost("hello-world")
	require.NoError(t, err)
	assert.Equal(t, post.ID, updated.ID)
	assert.True(t, updated.Created.Equal(post.Created))
	assert.True(t, updated.Edited.After(post.Edited) || updated.Edited.Equal(post.Edited))
	assert.True(t, updated.Hidden)

	assert.NotContains(t, visitor.get("/blog").Body.String(), "Changed Title")
	assert.Contains(t, admin.get("/blog").Body.String(), "Changed Title")
	assert.Equal(t, http.StatusOK, visitor.get("/blog/post/hello-world").Code)

	rec = admin.post("/blog/delete/hello-world", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusNotFound, visitor.get("/blog/post/hello-world").Code)
	assert.Equal(t, http.StatusNotFound, admin.post("/blog/delete/hello-world", nil).Code)
}

func TestCreatePostValidation(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()

	rec := admin.post("/blog/new", url.Values{"title": {""}, "body": {"text"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fix the fields below.")

	rec = admin.post("/blog/edit", url.Values{"slug": {"missing"}, "title": {"t"}, "body": {"b"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNotFound, admin.get("/blog/edit/missing").Code)
}

func TestPreview(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()

	rec := admin.post("/blog/preview", url.Values{"title": {"Draft"}, "body": {"*soon*"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<i>soon</i>")
	assert.Contains(t, rec.Body.String(), "This is a preview.")

	posts, err := app.Store.ListPosts(true)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFeeds(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()
	admin.post("/blog/new", url.Values{"title": {"Feed Post"}, "body": {"**feed** body"}, "tags": {"go"}})
	admin.post("/blog/new", url.Values{"title": {"Secret"}, "body": {"hidden"}, "unlisted": {"on"}})
	visitor := newTestClient(t, app)

	rec := visitor.get("/rss")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, rec.Body.String(), "<title>Feed Post</title>")
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;feed&lt;/b&gt;")
	assert.Contains(t, rec.Body.String(), "<category>go</category>")
	assert.NotContains(t, rec.Body.String(), "Secret")

	rec = visitor.get("/sitemap.xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://matdoes.dev/</loc>")
	assert.Contains(t, rec.Body.String(), "<loc>https://matdoes.dev/blog/post/feed-post</loc>")
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = visitor.get("/robots.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://matdoes.dev/sitemap.xml")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	tc := newTestClient(t, app)
	tc.get("/")
	tc.post("/blog/login", url.Values{"username": {"admin"}, "password": {"bad"}})

	rec := tc.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `site_http_requests_total{method="GET",route="/",status="200"} 1`)
	assert.Contains(t, body, `site_login_attempts_total{result="denied"} 1`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestImageUpload(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()

	upload := func(name string) *httptest.ResponseRecorder {
		var pngData bytes.Buffer
		require.NoError(t, encodeTestPNG(&pngData, 1000, 10))
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("_csrf", admin.csrf()))
		part, err := w.CreateFormFile("image", name)
		require.NoError(t, err)
		_, err = part.Write(pngData.Bytes())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/blog/images", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return admin.do(req)
	}

	rec := upload("My Pic.png")
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = upload("My Pic.png")
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	images, err := app.Store.ListImages()
	require.NoError(t, err)
	require.Len(t, images, 2)
	names := []string{images[0].Filename, images[1].Filename}
	assert.ElementsMatch(t, []string{"my-pic.jpg", "my-pic-2.jpg"}, names)
	assert.Equal(t, maxImageWidth, images[0].Width)
	assert.Equal(t, 8, images[0].Height)
	_, err = os.Stat(filepath.Join(app.Config.StaticDir, uploadsSubdir, "my-pic.jpg"))
	assert.NoError(t, err)

	rec = admin.get("/blog/images")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/uploads/my-pic-2.jpg")

	rec = admin.post("/blog/images/my-pic.jpg/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	ok, err := app.Store.ImageExists("my-pic.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(app.Config.StaticDir, uploadsSubdir, "my-pic.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestImageUploadRejectsGarbage(t *testing.T) {
	app := newTestApp(t)
	admin := newTestClient(t, app)
	admin.login()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("_csrf", admin.csrf()))
	part, err := w.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte("definitely not an image"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/blog/images", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, admin.do(req).Code)
}

func TestSetupRequiresSecrets(t *testing.T) {
	app := New(SiteConfig{DatabasePath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, app.Setup())
	app = New(SiteConfig{AdminPassword: "pw", DatabasePath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, app.Setup())
}

func TestCustomRoutes(t *testing.T) {
	app := newTestApp(t, WithCustomRoutes(func(a *App) {
		a.Echo.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	}))
	rec := newTestClient(t, app).get("/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func encodeTestPNG(buf *bytes.Buffer, w, h int) error {
	return png.Encode(buf, image.NewRGBA(image.Rect(0, 0, w, h)))
}
