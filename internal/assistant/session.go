package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Session keeps one conversation with the assistant. It is safe for
// concurrent use; questions are answered one at a time.
type Session struct {
	assistant *Assistant

	mu   sync.Mutex
	conv models.Conversation
}

// NewSession starts an empty conversation.
func (a *Assistant) NewSession() *Session {
	return &Session{assistant: a, conv: models.NewConversation(a.now())}
}

// Ask answers utterance with the conversation so far and records both turns.
func (s *Session) Ask(ctx context.Context, utterance string) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.assistant.Ask(ctx, utterance, s.conv)
	if err != nil {
		return nil, err
	}

	now := s.assistant.now()
	s.conv = s.conv.Append(models.NewUserMessage(utterance, now))
	s.conv = s.conv.Append(models.NewAssistantMessage(resp.Text, now, resp.DocumentIDs()))
	if cat, ok := categoryOf(resp); ok {
		s.conv.CurrentCategory = cat
	}
	return resp, nil
}

// Conversation returns a copy of the current conversation.
func (s *Session) Conversation() models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conv
	conv.Messages = append([]models.ChatMessage(nil), s.conv.Messages...)
	return conv
}

// Reset clears the conversation.
func (s *Session) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = models.NewConversation(now)
}

// categoryOf returns the shared category of a see-more response.
func categoryOf(resp *models.Response) (models.Category, bool) {
	if resp.SuggestedAction != models.ActionSeeMoreCategory || len(resp.Documents) == 0 {
		return "", false
	}
	return resp.Documents[0].Category, true
}
