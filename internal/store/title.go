package store

import "agentchat-backend/internal/models"

const (
	// MaxTitleLength is the longest title stored without truncation.
	MaxTitleLength = 100
	titleEllipsis  = "..."
)

// TruncateTitle caps a title at MaxTitleLength runes, ending in an ellipsis
// when it had to be cut.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	keep := MaxTitleLength - len(titleEllipsis)
	return string(runes[:keep]) + titleEllipsis
}

// InitialTitle resolves the title used when creating a conversation.
func InitialTitle(title *string) string {
	if title == nil || *title == "" {
		return models.DefaultConversationTitle
	}
	return TruncateTitle(*title)
}
