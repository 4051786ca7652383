package domain

// EventType enumerates stream event kinds.
type EventType string

const (
	EventInitial  EventType = "initial"
	EventArticle  EventType = "article"
	EventAnalysis EventType = "analysis"
	EventShutdown EventType = "shutdown"
)

// Event is an immutable payload fanned out to stream subscribers.
type Event struct {
	Type      EventType
	Article   *Article
	Analysis  *AnalysisResult
	ArticleID string
	Message   string
}

// ArticleEvent announces a newly ingested article.
func ArticleEvent(a Article) Event {
	return Event{Type: EventArticle, Article: &a}
}

// AnalysisEvent announces the analysis of an already announced article.
func AnalysisEvent(r AnalysisResult) Event {
	return Event{Type: EventAnalysis, Analysis: &r, ArticleID: r.ArticleID}
}

// ShutdownEvent tells subscribers the server is going away.
func ShutdownEvent() Event {
	return Event{Type: EventShutdown, Message: "Server shutting down"}
}

// Payload renders the event as the JSON object sent on the wire, without
// delivery-time annotations.
func (e Event) Payload() map[string]any {
	payload := map[string]any{"type": string(e.Type)}
	switch e.Type {
	case EventArticle:
		payload["data"] = e.Article
	case EventAnalysis:
		payload["articleId"] = e.ArticleID
		payload["data"] = e.Analysis
	case EventShutdown:
		payload["message"] = e.Message
	}
	return payload
}

// BufferStatus reports how full the recency buffer is.
type BufferStatus struct {
	Required int `json:"required"`
	Current  int `json:"current"`
}
