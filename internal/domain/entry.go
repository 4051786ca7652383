package domain

// Entry is a raw feed item before normalization. Every optional field is
// explicit; an empty value means "not present in the feed".
type Entry struct {
	Link    string
	Title   string
	Summary string
	// Content holds embedded HTML bodies (content:encoded, atom content).
	Content string

	// Date candidates, tried in declaration order.
	Published string
	PubDate   string
	Updated   string
	Created   string

	// Tags is the preferred category source.
	Tags []string
	// Category is the fallback category field.
	Category []CategoryValue

	MediaContent   []Media
	MediaThumbnail []Media
	Enclosures     []Media
}

// CategoryValue is one item of a category field: either a bare string or an
// object carrying a term.
type CategoryValue struct {
	Text string
	Term string
}

// Value returns the term when present, otherwise the bare text.
func (c CategoryValue) Value() string {
	if c.Term != "" {
		return c.Term
	}
	return c.Text
}

// Media describes an attached resource (media:content, media:thumbnail, enclosure).
type Media struct {
	URL  string
	Type string
}
