package domain

import (
	"encoding/json"
	"time"
)

// TimestampLayout renders timestamps as ISO-8601 with an explicit numeric offset
// (2024-01-01T00:00:00+00:00).
const TimestampLayout = "2006-01-02T15:04:05.999999-07:00"

// FormatTimestamp renders t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Article is a normalized feed entry accepted into the system.
type Article struct {
	ID         string
	Title      string
	Content    string
	Source     string
	Timestamp  time.Time
	URL        string
	ImageURL   string
	Categories []string
}

type articleJSON struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	Timestamp  string   `json:"timestamp"`
	URL        string   `json:"url"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// MarshalJSON keeps the wire timestamp offset-qualified.
func (a Article) MarshalJSON() ([]byte, error) {
	return json.Marshal(articleJSON{
		ID:         a.ID,
		Title:      a.Title,
		Content:    a.Content,
		Source:     a.Source,
		Timestamp:  FormatTimestamp(a.Timestamp),
		URL:        a.URL,
		ImageURL:   a.ImageURL,
		Categories: a.Categories,
	})
}

// UnmarshalJSON accepts any RFC 3339 timestamp.
func (a *Article) UnmarshalJSON(data []byte) error {
	var raw articleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return err
	}
	*a = Article{
		ID:         raw.ID,
		Title:      raw.Title,
		Content:    raw.Content,
		Source:     raw.Source,
		Timestamp:  ts,
		URL:        raw.URL,
		ImageURL:   raw.ImageURL,
		Categories: raw.Categories,
	}
	return nil
}

// AnalysisResult is the analysis backend's verdict on one article.
type AnalysisResult struct {
	ArticleID string `json:"article_id"`
	Timestamp string `json:"timestamp"`
	Analysis  string `json:"analysis"`
	Model     string `json:"model"`
	Version   string `json:"version"`
}

// FeedEntries groups the raw entries a single feed produced in one fetch.
type FeedEntries struct {
	FeedURL string
	Entries []Entry
}
