package rag

import (
	"strings"

	"github.com/docstack-ai/docstack/internal/llm"
)

const systemPreamble = `You are a helpful assistant for a document workspace.
Answer using only the context below. If the context does not contain the
answer, say so instead of guessing.`

// BuildPrompt assembles the message list sent to the model: one system
// message carrying the retrieved context verbatim, then the prior turns in
// their original order, then the new user turn. Turns with empty content
// are dropped; surviving turns are never reordered.
func BuildPrompt(chunks []Chunk, history []llm.Message, userTurn string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: renderContext(chunks),
	})

	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}

	if strings.TrimSpace(userTurn) != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userTurn})
	}
	return messages
}

// SummarizePrompt builds the message list for a single-document summary.
func SummarizePrompt(title, content string) []llm.Message {
	var b strings.Builder
	b.WriteString("Summarize the following document concisely.\n\n")
	if title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(content)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You summarize documents accurately and concisely."},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

func renderContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return systemPreamble + "\n\nContext: (no relevant documents found)"
	}

	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nContext:\n")
	for _, c := range chunks {
		b.WriteString("\n---\n")
		if c.Title != "" {
			b.WriteString("Title: ")
			b.WriteString(c.Title)
			b.WriteString("\n")
		}
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	return b.String()
}
