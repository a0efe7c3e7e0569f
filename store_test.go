package site

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matdoesdev/site/markdown"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test_site.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPost(slug string, created time.Time) Post {
	return Post{
		ID:      "id-" + slug,
		Slug:    slug,
		Title:   "Post " + slug,
		Content: "hello ![cat](/uploads/cat.jpg)",
		Author:  "mat",
		Tags:    []string{"Go", "web"},
		Created: created,
		Edited:  created,
		Image:   &markdown.Image{URL: "https://matdoes.dev/uploads/cat.jpg", Alt: "cat"},
		Images:  []markdown.Image{{URL: "/uploads/cat.jpg", Alt: "cat"}},
	}
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	if err := s.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestCreateAndGetPost(t *testing.T) {
	s := setupTestStore(t)
	created := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)
	post := testPost("first", created)

	if err := s.CreatePost(post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	got, err := s.GetPost("first")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.ID != post.ID || got.Title != post.Title || got.Content != post.Content || got.Author != post.Author {
		t.Errorf("got %+v, want %+v", got, post)
	}
	if !got.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", got.Created, created)
	}
	if want := []string{"go", "web"}; !reflect.DeepEqual(got.Tags, want) {
		t.Errorf("Tags = %v, want %v", got.Tags, want)
	}
	if got.Image == nil || *got.Image != *post.Image {
		t.Errorf("Image = %v, want %v", got.Image, post.Image)
	}
	if !reflect.DeepEqual(got.Images, post.Images) {
		t.Errorf("Images = %v, want %v", got.Images, post.Images)
	}

	byID, err := s.GetPostByID(post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if byID.Slug != "first" {
		t.Errorf("GetPostByID slug = %q, want first", byID.Slug)
	}
}

func TestCreatePostWithoutImages(t *testing.T) {
	s := setupTestStore(t)
	post := testPost("plain", time.Now())
	post.Image = nil
	post.Images = nil
	post.Tags = nil
	if err := s.CreatePost(post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	got, err := s.GetPost("plain")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Image != nil {
		t.Errorf("Image = %v, want nil", got.Image)
	}
	if len(got.Images) != 0 {
		t.Errorf("Images = %v, want empty", got.Images)
	}
	if got.Tags != nil {
		t.Errorf("Tags = %v, want nil", got.Tags)
	}
}

func TestCreatePostDuplicateSlug(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreatePost(testPost("dup", time.Now())); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	again := testPost("dup", time.Now())
	again.ID = "other-id"
	if err := s.CreatePost(again); err == nil {
		t.Fatal("expected error for duplicate slug")
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetPost("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPostsOrderAndHidden(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := testPost("older", base)
	newer := testPost("newer", base.Add(48*time.Hour))
	hidden := testPost("hidden", base.Add(24*time.Hour))
	hidden.Hidden = true
	for _, p := range []Post{older, newer, hidden} {
		if err := s.CreatePost(p); err != nil {
			t.Fatalf("CreatePost(%s) failed: %v", p.Slug, err)
		}
	}

	listed, err := s.ListPosts(false)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if got := slugs(listed); !reflect.DeepEqual(got, []string{"newer", "older"}) {
		t.Errorf("listed = %v", got)
	}

	all, err := s.ListPosts(true)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if got := slugs(all); !reflect.DeepEqual(got, []string{"newer", "hidden", "older"}) {
		t.Errorf("all = %v", got)
	}

	got, err := s.GetPost("hidden")
	if err != nil {
		t.Fatalf("hidden post should be reachable by slug: %v", err)
	}
	if !got.Hidden {
		t.Error("expected Hidden to round-trip")
	}
}

func TestUpdatePost(t *testing.T) {
	s := setupTestStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	post := testPost("edit-me", created)
	if err := s.CreatePost(post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	edited := created.Add(time.Hour)
	update := post
	update.ID = "ignored"
	update.Slug = "ignored"
	update.Created = edited
	update.Title = "New title"
	update.Content = "new body"
	update.Edited = edited
	update.Image = nil
	update.Images = nil
	update.Hidden = true
	if err := s.UpdatePost("edit-me", update); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}

	got, err := s.GetPost("edit-me")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.ID != post.ID {
		t.Errorf("ID changed to %q", got.ID)
	}
	if !got.Created.Equal(created) {
		t.Errorf("Created changed to %v", got.Created)
	}
	if !got.Edited.Equal(edited) {
		t.Errorf("Edited = %v, want %v", got.Edited, edited)
	}
	if got.Title != "New title" || got.Content != "new body" || !got.Hidden || got.Image != nil {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestUpdatePostNotFound(t *testing.T) {
	s := setupTestStore(t)
	err := s.UpdatePost("missing", testPost("missing", time.Now()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSlugExists(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreatePost(testPost("taken", time.Now())); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	for slug, want := range map[string]bool{"taken": true, "free": false} {
		got, err := s.SlugExists(slug)
		if err != nil {
			t.Fatalf("SlugExists(%q) failed: %v", slug, err)
		}
		if got != want {
			t.Errorf("SlugExists(%q) = %v, want %v", slug, got, want)
		}
	}
}

func TestDeletePost(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreatePost(testPost("gone", time.Now())); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if err := s.DeletePost("gone"); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if _, err := s.GetPost("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeletePost("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestImages(t *testing.T) {
	s := setupTestStore(t)
	first := UploadedImage{
		Filename:     "cat.jpg",
		OriginalName: "Cat.PNG",
		Width:        800,
		Height:       600,
		Size:         12345,
		UploadedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	second := first
	second.Filename = "dog.jpg"
	second.UploadedAt = first.UploadedAt.Add(time.Minute)
	for _, img := range []UploadedImage{first, second} {
		if err := s.SaveImage(img); err != nil {
			t.Fatalf("SaveImage failed: %v", err)
		}
	}

	images, err := s.ListImages()
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 2 || images[0].Filename != "dog.jpg" {
		t.Fatalf("ListImages = %+v, want dog.jpg first", images)
	}
	got := images[1]
	if got.Filename != first.Filename || got.OriginalName != first.OriginalName ||
		got.Width != first.Width || got.Height != first.Height || got.Size != first.Size ||
		!got.UploadedAt.Equal(first.UploadedAt) {
		t.Errorf("round trip = %+v, want %+v", got, first)
	}

	ok, err := s.ImageExists("cat.jpg")
	if err != nil || !ok {
		t.Fatalf("ImageExists(cat.jpg) = %v, %v", ok, err)
	}
	if err := s.DeleteImage("cat.jpg"); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if ok, _ := s.ImageExists("cat.jpg"); ok {
		t.Error("image should be gone")
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{",go,web,", []string{"go", "web"}},
		{"go,web", []string{"go", "web"}},
		{",single,", []string{"single"}},
		{"", nil},
		{",,", nil},
	}

	for _, tt := range tests {
		result := ParseTags(tt.input)
		if !reflect.DeepEqual(result, tt.expected) {
			t.Errorf("ParseTags(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestJoinTags(t *testing.T) {
	if got := joinTags([]string{" Go ", "", "WEB"}); got != ",go,web," {
		t.Errorf("joinTags = %q", got)
	}
	if got := joinTags(nil); got != "" {
		t.Errorf("joinTags(nil) = %q", got)
	}
}

func slugs(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Slug
	}
	return out
}
