package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxConversationMessages bounds the dialogue history kept per session.
const MaxConversationMessages = 10

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	ID                    string    `json:"id"`
	Text                  string    `json:"text"`
	IsUser                bool      `json:"is_user"`
	Timestamp             time.Time `json:"timestamp"`
	ReferencedDocumentIDs []string  `json:"referenced_document_ids,omitempty"`
}

// NewUserMessage creates a message typed by the user.
func NewUserMessage(text string, at time.Time) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Text: text, IsUser: true, Timestamp: at}
}

// NewAssistantMessage creates an assistant reply referencing the given documents.
func NewAssistantMessage(text string, at time.Time, docIDs []string) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Text: text, Timestamp: at, ReferencedDocumentIDs: docIDs}
}

// Conversation is the transient per-session dialogue state.
type Conversation struct {
	Messages                 []ChatMessage `json:"messages"`
	LastMentionedDocumentIDs []string      `json:"last_mentioned_document_ids,omitempty"`
	CurrentCategory          Category      `json:"current_category,omitempty"`
	ReferenceDay             Weekday       `json:"reference_day"`
}

// NewConversation starts an empty conversation anchored on the weekday of now.
func NewConversation(now time.Time) Conversation {
	return Conversation{ReferenceDay: WeekdayOf(now)}
}

// Append returns the conversation with msg added, keeping only the newest
// MaxConversationMessages messages.
func (c Conversation) Append(msg ChatMessage) Conversation {
	messages := make([]ChatMessage, 0, len(c.Messages)+1)
	messages = append(messages, c.Messages...)
	messages = append(messages, msg)
	if len(messages) > MaxConversationMessages {
		messages = messages[len(messages)-MaxConversationMessages:]
	}
	c.Messages = messages
	if len(msg.ReferencedDocumentIDs) > 0 {
		c.LastMentionedDocumentIDs = msg.ReferencedDocumentIDs
	}
	return c
}

// LastTurns returns up to n of the most recent messages, oldest first.
func (c Conversation) LastTurns(n int) []ChatMessage {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// ResponseType classifies an assistant response.
type ResponseType string

const (
	ResponseInformative          ResponseType = "informative"
	ResponseConfigurationSuccess ResponseType = "configuration_success"
	ResponseConfigurationFailed  ResponseType = "configuration_failed"
	ResponseEmptyQuery           ResponseType = "empty_query"
	ResponseError                ResponseType = "error"
)

// SuggestedAction is a follow-up the client can offer to the user.
type SuggestedAction string

const (
	ActionNone                 SuggestedAction = ""
	ActionRefreshSources       SuggestedAction = "refresh_sources"
	ActionReadDetail           SuggestedAction = "read_detail"
	ActionSaveNews             SuggestedAction = "save_news"
	ActionConfigurePreferences SuggestedAction = "configure_preferences"
	ActionSeeMoreCategory      SuggestedAction = "see_more_category"
)

// Response is the structured answer returned by the assistant.
type Response struct {
	Text                 string          `json:"text"`
	Documents            []Document      `json:"documents,omitempty"`
	Type                 ResponseType    `json:"type"`
	SuggestedAction      SuggestedAction `json:"suggested_action,omitempty"`
	AppliedConfiguration *DayPreference  `json:"applied_configuration,omitempty"`
}

// DocumentIDs returns the ids of the referenced documents.
func (r Response) DocumentIDs() []string {
	ids := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		ids[i] = d.ID
	}
	return ids
}
