package site

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/matdoesdev/site/views"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

type imagesData struct {
	Images []UploadedImage
}

// processImage decodes an upload (PNG, JPEG, GIF or WebP), scales it down to
// maxImageWidth when wider, and re-encodes it as JPEG.
func processImage(src io.Reader, originalName string) (UploadedImage, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return UploadedImage{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return UploadedImage{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	return UploadedImage{
		Filename:     GenerateSlug(base) + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         int64(buf.Len()),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

func (a *App) uploadsDir() string {
	return filepath.Join(a.Config.StaticDir, uploadsSubdir)
}

// uniqueFilename appends -2, -3, ... until the name is free both on disk and
// in the images table.
func (a *App) uniqueFilename(name string) (string, error) {
	base := strings.TrimSuffix(name, ".jpg")
	return UniqueSlug(base, func(candidate string) (bool, error) {
		if _, err := os.Stat(filepath.Join(a.uploadsDir(), candidate+".jpg")); err == nil {
			return true, nil
		}
		return a.Store.ImageExists(candidate + ".jpg")
	})
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, data, err := processImage(src, file.Filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	base, err := a.uniqueFilename(img.Filename)
	if err != nil {
		return err
	}
	img.Filename = base + ".jpg"

	if err := os.MkdirAll(a.uploadsDir(), 0o755); err != nil {
		return fmt.Errorf("site: create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.uploadsDir(), img.Filename), data, 0o644); err != nil {
		return fmt.Errorf("site: write image: %w", err)
	}
	if err := a.Store.SaveImage(img); err != nil {
		return err
	}
	c.Logger().Infof("uploaded %s (%dx%d, %d bytes)", img.Filename, img.Width, img.Height, img.Size)

	return c.Redirect(http.StatusSeeOther, "/blog/images")
}

func (a *App) handleImageDelete(c echo.Context) error {
	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid filename")
	}

	if err := os.Remove(filepath.Join(a.uploadsDir(), filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := a.Store.DeleteImage(filename); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/blog/images")
}

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.Store.ListImages()
	if err != nil {
		return err
	}
	return a.renderPage(c, http.StatusOK, "images.html", views.PageMeta{Title: "Images"}, imagesData{Images: images})
}
