package markdown

import "strings"

// Image is an image reference found in post content.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// FindImages returns every image in raw (unrendered) content in document
// order. Floated images are included: their syntax contains the plain form.
func FindImages(content string) []Image {
	matches := reImage.FindAllStringSubmatch(content, -1)
	images := make([]Image, 0, len(matches))
	for _, m := range matches {
		images = append(images, Image{Alt: m[1], URL: m[2]})
	}
	return images
}

// FindFirstImage returns the first image in content, or nil. A URL starting
// with "/" is made absolute against baseURL.
func FindFirstImage(content, baseURL string) *Image {
	m := reImage.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	img := &Image{Alt: m[1], URL: m[2]}
	if strings.HasPrefix(img.URL, "/") {
		img.URL = strings.TrimSuffix(baseURL, "/") + img.URL
	}
	return img
}

// ResponsiveImage returns a lazily loaded <img> followed by a <noscript>
// fallback. The lazy image keeps its address in data-src until a client script
// promotes it; the "lazy" class is removed once it has loaded.
func ResponsiveImage(src, alt string, classes ...string) string {
	lazy := strings.Join(append([]string{"lazy"}, classes...), " ")
	plain := strings.Join(classes, " ")
	return `<img data-src="` + src + `" alt="` + alt + `" class="` + lazy + `" onload="this.classList.remove('lazy')">` +
		`<noscript><img src="` + src + `" alt="` + alt + `" class="` + plain + `"></noscript>`
}
