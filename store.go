package site

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matdoesdev/site/markdown"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store wraps a SQLite database holding post documents and upload metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers run alongside the single writer; the busy timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("site: schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    author TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    edited_at TEXT NOT NULL,
    image_url TEXT NOT NULL DEFAULT '',
    image_alt TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]',
    hidden INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at);
CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

const postColumns = `id, slug, title, content, author, tags, created_at, edited_at, image_url, image_alt, images, hidden`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var (
		p                  Post
		tags, created      string
		edited, imagesJSON string
		imageURL, imageAlt string
		hidden             int
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.Author, &tags,
		&created, &edited, &imageURL, &imageAlt, &imagesJSON, &hidden)
	if err != nil {
		return Post{}, err
	}
	p.Tags = ParseTags(tags)
	p.Hidden = hidden == 1
	if p.Created, err = time.Parse(timeLayout, created); err != nil {
		return Post{}, fmt.Errorf("site: post %s created_at: %w", p.ID, err)
	}
	if p.Edited, err = time.Parse(timeLayout, edited); err != nil {
		return Post{}, fmt.Errorf("site: post %s edited_at: %w", p.ID, err)
	}
	if imageURL != "" {
		p.Image = &markdown.Image{URL: imageURL, Alt: imageAlt}
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.Images); err != nil {
		return Post{}, fmt.Errorf("site: post %s images: %w", p.ID, err)
	}
	return p, nil
}

// ListPosts returns posts newest first. Hidden posts are included only when
// includeHidden is set.
func (s *Store) ListPosts(includeHidden bool) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	if !includeHidden {
		query += ` WHERE hidden = 0`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a post by slug, hidden or not. It returns ErrNotFound when
// no post has that slug.
func (s *Store) GetPost(slug string) (Post, error) {
	return scanPost(s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug))
}

// GetPostByID returns a post by its document ID.
func (s *Store) GetPostByID(id string) (Post, error) {
	return scanPost(s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
}

// SlugExists reports whether a post already uses slug.
func (s *Store) SlugExists(slug string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE slug = ?`, slug).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreatePost inserts a new post document.
func (s *Store) CreatePost(p Post) error {
	imageURL, imageAlt := imageColumns(p.Image)
	images, err := imagesColumn(p.Images)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, p.Content, p.Author, joinTags(p.Tags),
		formatTime(p.Created), formatTime(p.Edited), imageURL, imageAlt, images, boolInt(p.Hidden))
	if err != nil {
		return fmt.Errorf("site: create post %q: %w", p.Slug, err)
	}
	return nil
}

// UpdatePost replaces the editable fields of the post stored under slug. The
// ID, slug and creation time of the stored post are kept.
func (s *Store) UpdatePost(slug string, p Post) error {
	imageURL, imageAlt := imageColumns(p.Image)
	images, err := imagesColumn(p.Images)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE posts SET title = ?, content = ?, author = ?, tags = ?, edited_at = ?,
		image_url = ?, image_alt = ?, images = ?, hidden = ? WHERE slug = ?`,
		p.Title, p.Content, p.Author, joinTags(p.Tags), formatTime(p.Edited),
		imageURL, imageAlt, images, boolInt(p.Hidden), slug)
	if err != nil {
		return fmt.Errorf("site: update post %q: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post by slug.
func (s *Store) DeletePost(slug string) error {
	res, err := s.db.Exec(`DELETE FROM posts WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImages returns uploaded image metadata, newest first.
func (s *Store) ListImages() ([]UploadedImage, error) {
	rows, err := s.db.Query(`SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []UploadedImage
	for rows.Next() {
		var img UploadedImage
		var uploaded string
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &uploaded); err != nil {
			return nil, err
		}
		if img.UploadedAt, err = time.Parse(timeLayout, uploaded); err != nil {
			return nil, fmt.Errorf("site: image %s uploaded_at: %w", img.Filename, err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageExists reports whether upload metadata exists for filename.
func (s *Store) ImageExists(filename string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE filename = ?`, filename).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveImage records upload metadata.
func (s *Store) SaveImage(img UploadedImage) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO images (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, formatTime(img.UploadedAt))
	return err
}

// DeleteImage removes upload metadata.
func (s *Store) DeleteImage(filename string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE filename = ?`, filename)
	return err
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func joinTags(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		return ""
	}
	return "," + strings.Join(normalized, ",") + ","
}

func imageColumns(img *markdown.Image) (string, string) {
	if img == nil {
		return "", ""
	}
	return img.URL, img.Alt
}

func imagesColumn(images []markdown.Image) (string, error) {
	if images == nil {
		images = []markdown.Image{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("site: encode images: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
