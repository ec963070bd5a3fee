// Package assistant orchestrates the question-answering flows: retrieval,
// prompt assembly, model invocation, and conversation bookkeeping.
package assistant

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docstack-ai/docstack/internal/conversation"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/llm"
	"github.com/docstack-ai/docstack/internal/rag"
)

// Retrieval is the context retrieval dependency. rag.Retriever satisfies it.
type Retrieval interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Chunk, error)
	RetrieveForDocument(ctx context.Context, documentID, query string, k int) ([]rag.Chunk, error)
	DefaultK() int
}

// DocumentAccess is the slice of document storage the assistant needs.
// document.Store satisfies it.
type DocumentAccess interface {
	OwnedBy(ctx context.Context, documentID string, ownerID uuid.UUID) (bool, error)
	Content(ctx context.Context, documentID string) (title, content string, err error)
}

// Conversations is the transcript dependency. conversation.Store satisfies it.
type Conversations interface {
	AppendMessage(ctx context.Context, conversationID, ownerID uuid.UUID, role, content string, authorID *uuid.UUID) (*conversation.Message, error)
	ListMessages(ctx context.Context, conversationID, ownerID uuid.UUID) ([]*conversation.Message, error)
}

// ReplyResult is the outcome of a conversational turn: the stored user
// message and the stored assistant reply.
type ReplyResult struct {
	UserMessage      *conversation.Message `json:"userMessage"`
	AssistantMessage *conversation.Message `json:"assistantMessage"`
}

// Service wires retrieval, generation and conversations together.
type Service struct {
	docs       DocumentAccess
	retriever  Retrieval
	model      llm.Client
	convs      Conversations
	maxHistory int
	logger     *slog.Logger
}

// NewService creates the assistant service. maxHistory caps how many prior
// turns are replayed to the model per conversational request.
func NewService(docs DocumentAccess, retriever Retrieval, model llm.Client, convs Conversations, maxHistory int, logger *slog.Logger) (*Service, error) {
	if docs == nil {
		return nil, fmt.Errorf("document access is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if model == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if convs == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if maxHistory <= 0 {
		return nil, fmt.Errorf("max history must be positive, got %d", maxHistory)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:       docs,
		retriever:  retriever,
		model:      model,
		convs:      convs,
		maxHistory: maxHistory,
		logger:     logger,
	}, nil
}

// Ask answers a question about one document, grounding the model on that
// document plus its nearest neighbors. Asking about a document the caller
// does not own reports document.ErrNotFound, identically to a missing one.
func (s *Service) Ask(ctx context.Context, ownerID, documentID uuid.UUID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", llm.ErrEmptyPrompt
	}
	if err := s.requireOwned(ctx, ownerID, documentID); err != nil {
		return "", err
	}

	chunks, err := s.retriever.RetrieveForDocument(ctx, documentID.String(), question, 0)
	if err != nil {
		return "", err
	}
	// The index is global; neighbor chunks may belong to other users and
	// must never reach the prompt. The pinned target survives the filter.
	chunks, err = s.filterOwned(ctx, ownerID, chunks)
	if err != nil {
		return "", err
	}

	messages := rag.BuildPrompt(chunks, nil, question)
	answer, err := s.model.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	s.logger.Debug("answered question", "document", documentID, "contextChunks", len(chunks))
	return answer, nil
}

// Summarize produces a summary of one owned document.
func (s *Service) Summarize(ctx context.Context, ownerID, documentID uuid.UUID) (string, error) {
	if err := s.requireOwned(ctx, ownerID, documentID); err != nil {
		return "", err
	}

	title, content, err := s.docs.Content(ctx, documentID.String())
	if err != nil {
		return "", err
	}

	return s.model.Complete(ctx, rag.SummarizePrompt(title, content))
}

// StreamChat answers a multi-turn chat about one document as a token
// stream. Pre-flight failures (unowned document, empty turns) are returned
// immediately so the transport can still respond with an error status;
// once the sequence is consumed, failures surface inside it.
func (s *Service) StreamChat(ctx context.Context, ownerID, documentID uuid.UUID, turns []llm.Message) (iter.Seq2[string, error], error) {
	if err := s.requireOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	query := lastUserContent(turns)
	if query == "" {
		return nil, llm.ErrEmptyPrompt
	}

	chunks, err := s.retriever.RetrieveForDocument(ctx, documentID.String(), query, 0)
	if err != nil {
		return nil, err
	}
	chunks, err = s.filterOwned(ctx, ownerID, chunks)
	if err != nil {
		return nil, err
	}

	messages := rag.BuildPrompt(chunks, turns, "")
	return s.model.Stream(ctx, messages), nil
}

// Reply appends a user turn to a conversation, generates the assistant's
// reply grounded on the whole corpus, and appends that reply. Both stored
// messages are returned.
func (s *Service) Reply(ctx context.Context, ownerID, conversationID uuid.UUID, content string) (*ReplyResult, error) {
	userMsg, err := s.convs.AppendMessage(ctx, conversationID, ownerID, conversation.RoleUser, content, &ownerID)
	if err != nil {
		return nil, err
	}

	history, err := s.convs.ListMessages(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	chunks, err := s.retriever.Retrieve(ctx, content, 0)
	if err != nil {
		return nil, err
	}

	messages := rag.BuildPrompt(chunks, toLLMMessages(history), "")
	reply, err := s.model.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	assistantMsg, err := s.convs.AppendMessage(ctx, conversationID, ownerID, conversation.RoleAssistant, reply, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("replied in conversation",
		"conversation", conversationID, "historyTurns", len(history), "contextChunks", len(chunks))
	return &ReplyResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// Search returns the caller's documents most similar to the query.
// Matches owned by other users are filtered out.
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, query string, k int) ([]rag.Chunk, error) {
	chunks, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return s.filterOwned(ctx, ownerID, chunks)
}

// Similar returns up to k owned documents most similar to the given one,
// excluding the document itself.
func (s *Service) Similar(ctx context.Context, ownerID, documentID uuid.UUID, k int) ([]rag.Chunk, error) {
	if err := s.requireOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	title, content, err := s.docs.Content(ctx, documentID.String())
	if err != nil {
		return nil, err
	}

	query := content
	if title != "" {
		query = title + "\n\n" + content
	}

	// Resolve the default before adding the slot the pinned document takes,
	// otherwise a default request would leave no room for neighbors.
	if k <= 0 {
		k = s.retriever.DefaultK()
	}

	chunks, err := s.retriever.RetrieveForDocument(ctx, documentID.String(), query, k+1)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 && chunks[0].DocumentID == documentID.String() {
		chunks = chunks[1:]
	}
	return s.filterOwned(ctx, ownerID, chunks)
}

func (s *Service) requireOwned(ctx context.Context, ownerID, documentID uuid.UUID) error {
	owned, err := s.docs.OwnedBy(ctx, documentID.String(), ownerID)
	if err != nil {
		return err
	}
	if !owned {
		return document.ErrNotFound
	}
	return nil
}

func (s *Service) filterOwned(ctx context.Context, ownerID uuid.UUID, chunks []rag.Chunk) ([]rag.Chunk, error) {
	out := make([]rag.Chunk, 0, len(chunks))
	for _, c := range chunks {
		owned, err := s.docs.OwnedBy(ctx, c.DocumentID, ownerID)
		if err != nil {
			return nil, err
		}
		if owned {
			out = append(out, c)
		}
	}
	return out, nil
}

func lastUserContent(turns []llm.Message) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == llm.RoleUser && strings.TrimSpace(turns[i].Content) != "" {
			return turns[i].Content
		}
	}
	return ""
}

func toLLMMessages(history []*conversation.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
