package assistant

import (
	"fmt"
	"strings"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

const (
	// MaxContextDocuments is how many documents are rendered into a context.
	MaxContextDocuments = 5
	// HistoryTurns is how many recent messages are appended to a context.
	HistoryTurns = 3
	// HistoryMessageLength bounds each history line.
	HistoryMessageLength = 500
)

// BuildContext renders the grounding text for one question: the category
// lists, the first MaxContextDocuments documents and the last HistoryTurns
// messages of the conversation.
func BuildContext(docs []models.Document, active []models.Category, conv models.Conversation) string {
	var b strings.Builder

	b.WriteString("CATEGORÍAS DISPONIBLES:\n")
	b.WriteString(models.JoinCategories(models.AllCategories()))
	b.WriteString("\n\n")

	b.WriteString("CATEGORÍAS ACTIVAS HOY:\n")
	b.WriteString(models.JoinCategories(active))
	b.WriteString("\n\n")

	if len(docs) > 0 {
		fmt.Fprintf(&b, "NOTICIAS ENCONTRADAS (%d):\n\n", len(docs))
		for i, doc := range docs[:min(len(docs), MaxContextDocuments)] {
			fmt.Fprintf(&b, "--- NOTICIA %d ---\n", i+1)
			b.WriteString(doc.ContextBlock())
			b.WriteString("\n")
		}
		if len(docs) > MaxContextDocuments {
			fmt.Fprintf(&b, "\n(Y %d noticias más)\n", len(docs)-MaxContextDocuments)
		}
	}

	if turns := conv.LastTurns(HistoryTurns); len(turns) > 0 {
		b.WriteString("\nHISTORIAL RECIENTE:\n")
		for _, msg := range turns {
			role := "Asistente"
			if msg.IsUser {
				role = "Usuario"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, models.Truncate(msg.Text, HistoryMessageLength))
		}
	}

	return b.String()
}
