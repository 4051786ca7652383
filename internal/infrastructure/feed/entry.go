package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"NewsStream/internal/domain"
)

// toEntry flattens a parsed gofeed item into the fields normalization reads.
func toEntry(item *gofeed.Item) domain.Entry {
	entry := domain.Entry{
		Link:      strings.TrimSpace(item.Link),
		Title:     strings.TrimSpace(item.Title),
		Summary:   item.Description,
		Content:   item.Content,
		Published: item.Published,
		Updated:   item.Updated,
		Tags:      item.Categories,
	}
	if entry.Summary == "" {
		entry.Summary = item.Content
	}
	if item.Custom != nil {
		entry.PubDate = item.Custom["pubDate"]
	}
	if dc := item.DublinCoreExt; dc != nil {
		if len(dc.Date) > 0 {
			entry.Created = dc.Date[0]
		}
		for _, subject := range dc.Subject {
			entry.Category = append(entry.Category, domain.CategoryValue{Text: subject})
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		entry.MediaContent = mediaElements(media, "content")
		entry.MediaThumbnail = mediaElements(media, "thumbnail")
		for _, group := range media["group"] {
			entry.MediaContent = append(entry.MediaContent, mediaElements(group.Children, "content")...)
			entry.MediaThumbnail = append(entry.MediaThumbnail, mediaElements(group.Children, "thumbnail")...)
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		entry.MediaThumbnail = append(entry.MediaThumbnail, domain.Media{URL: item.Image.URL})
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		entry.Enclosures = append(entry.Enclosures, domain.Media{URL: enc.URL, Type: enc.Type})
	}
	return entry
}

func mediaElements(elements map[string][]ext.Extension, name string) []domain.Media {
	var out []domain.Media
	for _, el := range elements[name] {
		u := el.Attrs["url"]
		if u == "" {
			continue
		}
		typ := el.Attrs["type"]
		if typ == "" && el.Attrs["medium"] == "image" {
			typ = "image/*"
		}
		out = append(out, domain.Media{URL: u, Type: typ})
	}
	return out
}
