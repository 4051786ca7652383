package ml

import (
	"fmt"

	"NewsStream/internal/domain"
)

const promptTemplate = `Analyze this financial article briefly:

Title: %s
Source: %s
Content: %s

Provide a concise analysis:
1. Summary: Key points in 2-3 sentences
2. Market Impact: Main effects on markets
3. Trading Ideas: 1-2 specific trading opportunities
4. Assets: Key instruments mentioned
5. Risk: Low/Medium/High with brief reason

Keep responses short and focused.`

// BuildPrompt renders the finance analysis prompt for article.
func BuildPrompt(article domain.Article) string {
	return fmt.Sprintf(promptTemplate, article.Title, article.Source, article.Content)
}

// NewResult stamps backend output with the article identity and model labels.
func NewResult(article domain.Article, text, model, version string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		ArticleID: article.ID,
		Timestamp: domain.FormatTimestamp(article.Timestamp),
		Analysis:  text,
		Model:     model,
		Version:   version,
	}
}
