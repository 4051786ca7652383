package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsStream/internal/domain"
)

// imageStrategy returns an image URL and whether it found one.
type imageStrategy func(domain.Entry) (string, bool)

// imageStrategies run in priority order; the first hit wins.
var imageStrategies = []imageStrategy{
	fromMediaContent,
	fromMediaThumbnail,
	fromEnclosures,
	fromEmbeddedContent,
}

// ExtractImageURL returns the best image for entry, or "" when there is none.
func ExtractImageURL(entry domain.Entry) string {
	for _, strategy := range imageStrategies {
		if u, ok := strategy(entry); ok {
			return u
		}
	}
	return ""
}

func fromMediaContent(entry domain.Entry) (string, bool) {
	return firstImageMedia(entry.MediaContent)
}

func fromMediaThumbnail(entry domain.Entry) (string, bool) {
	for _, m := range entry.MediaThumbnail {
		if u := strings.TrimSpace(m.URL); u != "" {
			return u, true
		}
	}
	return "", false
}

func fromEnclosures(entry domain.Entry) (string, bool) {
	return firstImageMedia(entry.Enclosures)
}

func fromEmbeddedContent(entry domain.Entry) (string, bool) {
	for _, body := range []string{entry.Content, entry.Summary} {
		if u, ok := firstImgSrc(body); ok {
			return u, true
		}
	}
	return "", false
}

func firstImageMedia(media []domain.Media) (string, bool) {
	for _, m := range media {
		if !strings.HasPrefix(strings.ToLower(m.Type), "image/") {
			continue
		}
		if u := strings.TrimSpace(m.URL); u != "" {
			return u, true
		}
	}
	return "", false
}

func firstImgSrc(html string) (string, bool) {
	if !strings.Contains(strings.ToLower(html), "<img") {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	src, ok := doc.Find("img[src]").First().Attr("src")
	src = strings.TrimSpace(src)
	return src, ok && src != ""
}
