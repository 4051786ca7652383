package httpapi

import "NewsStream/internal/domain"

// ArticlesResponse is the body of GET /articles.
type ArticlesResponse struct {
	Articles  []domain.Article `json:"articles"`
	Status    string           `json:"status"`
	Message   string           `json:"message,omitempty"`
	Required  int              `json:"required"`
	Current   int              `json:"current"`
	Timestamp string           `json:"timestamp"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string  `json:"status"`
	Timestamp        string  `json:"timestamp"`
	BufferSize       int     `json:"buffer_size"`
	ConnectedClients int     `json:"connected_clients"`
	Uptime           float64 `json:"uptime"`
}

// AnalysisResponse is the body of GET /analysis/{article_id}.
type AnalysisResponse struct {
	ArticleID string                 `json:"articleId"`
	Analysis  *domain.AnalysisResult `json:"analysis,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// StatusResponse is the body of POST /clear-cache.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type initialEvent struct {
	Type         string              `json:"type"`
	Articles     []domain.Article    `json:"articles"`
	Status       string              `json:"status"`
	BufferStatus domain.BufferStatus `json:"buffer_status"`
	Timestamp    string              `json:"timestamp"`
}
