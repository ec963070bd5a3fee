package assistant

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/docstack-ai/docstack/internal/conversation"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/llm"
	"github.com/docstack-ai/docstack/internal/rag"
	"github.com/docstack-ai/docstack/internal/vectorindex"
)

type fakeDocs struct {
	owned   map[string]uuid.UUID
	content map[string][2]string
}

func (f *fakeDocs) OwnedBy(_ context.Context, documentID string, ownerID uuid.UUID) (bool, error) {
	return f.owned[documentID] == ownerID, nil
}

func (f *fakeDocs) Content(_ context.Context, documentID string) (string, string, error) {
	d, ok := f.content[documentID]
	if !ok {
		return "", "", document.ErrNotFound
	}
	return d[0], d[1], nil
}

type fakeRetriever struct {
	chunks    []rag.Chunk
	lastQuery string
	lastDocID string
	lastK     int
	err       error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]rag.Chunk, error) {
	f.lastQuery = query
	f.lastK = k
	return f.chunks, f.err
}

func (f *fakeRetriever) RetrieveForDocument(_ context.Context, documentID, query string, k int) ([]rag.Chunk, error) {
	f.lastDocID = documentID
	f.lastQuery = query
	f.lastK = k
	return f.chunks, f.err
}

func (f *fakeRetriever) DefaultK() int { return 4 }

type fakeModel struct {
	reply        string
	completeErr  error
	lastMessages []llm.Message
	streamParts  []string
	streamErr    error
}

func (f *fakeModel) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.lastMessages = messages
	return f.reply, f.completeErr
}

func (f *fakeModel) Stream(_ context.Context, messages []llm.Message) iter.Seq2[string, error] {
	f.lastMessages = messages
	return func(yield func(string, error) bool) {
		for _, p := range f.streamParts {
			if !yield(p, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

type fakeConvs struct {
	messages map[uuid.UUID][]*conversation.Message
	owner    uuid.UUID
}

func (f *fakeConvs) AppendMessage(_ context.Context, conversationID, ownerID uuid.UUID, role, content string, authorID *uuid.UUID) (*conversation.Message, error) {
	if ownerID != f.owner {
		return nil, conversation.ErrNotFound
	}
	m := &conversation.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		AuthorID:       authorID,
		SequenceNumber: len(f.messages[conversationID]) + 1,
	}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	return m, nil
}

func (f *fakeConvs) ListMessages(_ context.Context, conversationID, ownerID uuid.UUID) ([]*conversation.Message, error) {
	if ownerID != f.owner {
		return nil, conversation.ErrNotFound
	}
	return f.messages[conversationID], nil
}

func newTestService(t *testing.T, docs *fakeDocs, ret *fakeRetriever, model *fakeModel, convs *fakeConvs) *Service {
	t.Helper()
	svc, err := NewService(docs, ret, model, convs, 100, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func testFixtures(owner uuid.UUID, docID uuid.UUID) (*fakeDocs, *fakeRetriever, *fakeModel, *fakeConvs) {
	docs := &fakeDocs{
		owned:   map[string]uuid.UUID{docID.String(): owner},
		content: map[string][2]string{docID.String(): {"Title", "document body"}},
	}
	ret := &fakeRetriever{chunks: []rag.Chunk{
		{DocumentID: docID.String(), Title: "Title", Content: "document body", Score: 1},
	}}
	model := &fakeModel{reply: "the answer"}
	convs := &fakeConvs{messages: map[uuid.UUID][]*conversation.Message{}, owner: owner}
	return docs, ret, model, convs
}

func TestAsk(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	answer, err := svc.Ask(context.Background(), owner, docID, "what is this?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != "the answer" {
		t.Errorf("Ask() = %q, want %q", answer, "the answer")
	}
	if ret.lastDocID != docID.String() {
		t.Errorf("retrieval pinned document %q, want %q", ret.lastDocID, docID)
	}
	if len(model.lastMessages) != 2 {
		t.Fatalf("model received %d messages, want system + user", len(model.lastMessages))
	}
	if !strings.Contains(model.lastMessages[0].Content, "document body") {
		t.Errorf("system message missing retrieved context")
	}
	if model.lastMessages[1].Content != "what is this?" {
		t.Errorf("user message = %q", model.lastMessages[1].Content)
	}
}

func TestAskUnownedDocument(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	_, err := svc.Ask(context.Background(), uuid.New(), docID, "what is this?")
	if !errors.Is(err, document.ErrNotFound) {
		t.Errorf("Ask() error = %v, want ErrNotFound for unowned document", err)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	_, err := svc.Ask(context.Background(), owner, docID, "  ")
	if !errors.Is(err, llm.ErrEmptyPrompt) {
		t.Errorf("Ask() error = %v, want ErrEmptyPrompt", err)
	}
}

func TestSummarize(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	model.reply = "a summary"
	svc := newTestService(t, docs, ret, model, convs)

	summary, err := svc.Summarize(context.Background(), owner, docID)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "a summary" {
		t.Errorf("Summarize() = %q", summary)
	}
	if !strings.Contains(model.lastMessages[1].Content, "document body") {
		t.Errorf("summary prompt missing document content")
	}
}

func TestStreamChat(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	model.streamParts = []string{"Hel", "lo"}
	svc := newTestService(t, docs, ret, model, convs)

	turns := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "tell me more"},
	}
	seq, err := svc.StreamChat(context.Background(), owner, docID, turns)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var got []string
	for part, err := range seq {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		got = append(got, part)
	}
	if strings.Join(got, "") != "Hello" {
		t.Errorf("stream = %v", got)
	}
	if ret.lastQuery != "tell me more" {
		t.Errorf("retrieval query = %q, want the last user turn", ret.lastQuery)
	}
	// History must reach the model in its original order after the system
	// context message.
	if model.lastMessages[1].Content != "earlier" || model.lastMessages[3].Content != "tell me more" {
		t.Errorf("model messages reordered: %+v", model.lastMessages)
	}
}

func TestStreamChatUnownedFailsBeforeStreaming(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	_, err := svc.StreamChat(context.Background(), uuid.New(), docID, []llm.Message{{Role: llm.RoleUser, Content: "q"}})
	if !errors.Is(err, document.ErrNotFound) {
		t.Errorf("StreamChat() error = %v, want ErrNotFound", err)
	}
	_ = owner
}

func TestStreamChatNoUserTurn(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	_, err := svc.StreamChat(context.Background(), owner, docID, []llm.Message{{Role: llm.RoleAssistant, Content: "hi"}})
	if !errors.Is(err, llm.ErrEmptyPrompt) {
		t.Errorf("StreamChat() error = %v, want ErrEmptyPrompt", err)
	}
}

func TestReplyAppendsBothTurns(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	model.reply = "assistant reply"
	svc := newTestService(t, docs, ret, model, convs)

	convID := uuid.New()
	result, err := svc.Reply(context.Background(), owner, convID, "user question")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	if result.UserMessage.Content != "user question" || result.UserMessage.Role != conversation.RoleUser {
		t.Errorf("user message = %+v", result.UserMessage)
	}
	if result.AssistantMessage.Content != "assistant reply" || result.AssistantMessage.Role != conversation.RoleAssistant {
		t.Errorf("assistant message = %+v", result.AssistantMessage)
	}
	if result.UserMessage.AuthorID == nil || *result.UserMessage.AuthorID != owner {
		t.Errorf("user message author = %v, want caller", result.UserMessage.AuthorID)
	}
	if result.AssistantMessage.AuthorID != nil {
		t.Errorf("assistant message author = %v, want nil", result.AssistantMessage.AuthorID)
	}

	stored := convs.messages[convID]
	if len(stored) != 2 {
		t.Fatalf("stored %d messages, want 2", len(stored))
	}
	if stored[0].SequenceNumber >= stored[1].SequenceNumber {
		t.Errorf("sequence numbers not increasing: %d, %d", stored[0].SequenceNumber, stored[1].SequenceNumber)
	}
}

func TestReplyModelFailureLeavesNoAssistantTurn(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	model.completeErr = llm.ErrUpstream
	svc := newTestService(t, docs, ret, model, convs)

	convID := uuid.New()
	_, err := svc.Reply(context.Background(), owner, convID, "user question")
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("Reply() error = %v, want ErrUpstream", err)
	}

	// The user turn stays; only the assistant turn is absent.
	stored := convs.messages[convID]
	if len(stored) != 1 || stored[0].Role != conversation.RoleUser {
		t.Errorf("stored messages = %+v, want only the user turn", stored)
	}
}

func TestSearchFiltersUnownedDocuments(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	ret.chunks = append(ret.chunks, rag.Chunk{DocumentID: uuid.NewString(), Title: "Other", Content: "not yours"})
	svc := newTestService(t, docs, ret, model, convs)

	chunks, err := svc.Search(context.Background(), owner, "query", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].DocumentID != docID.String() {
		t.Errorf("Search() = %+v, want only owned documents", chunks)
	}
}

func TestSimilarExcludesSelf(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	otherID := uuid.New()
	docs.owned[otherID.String()] = owner
	ret.chunks = []rag.Chunk{
		{DocumentID: docID.String(), Title: "Title", Content: "document body", Score: 1},
		{DocumentID: otherID.String(), Title: "Other", Content: "other body", Score: 0.8},
	}
	svc := newTestService(t, docs, ret, model, convs)

	chunks, err := svc.Similar(context.Background(), owner, docID, 3)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].DocumentID != otherID.String() {
		t.Errorf("Similar() = %+v, want only the neighbor", chunks)
	}
	if ret.lastK != 4 {
		t.Errorf("retrieval k = %d, want requested k plus the self slot", ret.lastK)
	}
}

func TestSimilarDefaultKLeavesRoomForNeighbors(t *testing.T) {
	owner, docID := uuid.New(), uuid.New()
	docs, ret, model, convs := testFixtures(owner, docID)
	svc := newTestService(t, docs, ret, model, convs)

	if _, err := svc.Similar(context.Background(), owner, docID, 0); err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if ret.lastK != ret.DefaultK()+1 {
		t.Errorf("retrieval k = %d, want default %d plus the self slot", ret.lastK, ret.DefaultK())
	}
}

// promptGenerator maps exact text to a fixed vector so the real retriever
// can be driven deterministically.
type promptGenerator struct {
	vectors map[string][]float32
}

func (g *promptGenerator) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := g.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

// realRetriever builds a rag.Retriever over a memory index so the tests
// exercise the production retrieval semantics, not a fake's.
func realRetriever(t *testing.T, gen *promptGenerator, docs *fakeDocs, entries []vectorindex.Entry) *rag.Retriever {
	t.Helper()
	index := vectorindex.NewMemory()
	for _, e := range entries {
		if err := index.Upsert(context.Background(), e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	ret, err := rag.NewRetriever(gen, index, docs, 4, 20, nil)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return ret
}

func TestSimilarDefaultKReturnsIndexedNeighbors(t *testing.T) {
	owner, docID, neighborID := uuid.New(), uuid.New(), uuid.New()
	docs := &fakeDocs{
		owned: map[string]uuid.UUID{docID.String(): owner, neighborID.String(): owner},
		content: map[string][2]string{
			docID.String():      {"Target", "alpha body"},
			neighborID.String(): {"Neighbor", "beta body"},
		},
	}
	gen := &promptGenerator{vectors: map[string][]float32{
		"Target\n\nalpha body": {1, 0, 0},
	}}
	ret := realRetriever(t, gen, docs, []vectorindex.Entry{
		{DocumentID: docID.String(), Vector: []float32{1, 0, 0}, Title: "Target"},
		{DocumentID: neighborID.String(), Vector: []float32{1, 0.05, 0}, Title: "Neighbor"},
	})
	model := &fakeModel{}
	convs := &fakeConvs{messages: map[uuid.UUID][]*conversation.Message{}, owner: owner}
	svc, err := NewService(docs, ret, model, convs, 100, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	chunks, err := svc.Similar(context.Background(), owner, docID, 0)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].DocumentID != neighborID.String() {
		t.Errorf("Similar() = %+v, want the indexed neighbor", chunks)
	}
}

func TestAskNeverGroundsOnUnownedNeighbors(t *testing.T) {
	owner, docID, strangerID := uuid.New(), uuid.New(), uuid.New()
	docs := &fakeDocs{
		owned: map[string]uuid.UUID{docID.String(): owner},
		content: map[string][2]string{
			docID.String():      {"Mine", "my document body"},
			strangerID.String(): {"Theirs", "another user's content"},
		},
	}
	gen := &promptGenerator{vectors: map[string][]float32{
		"what is in here?": {1, 0, 0},
	}}
	ret := realRetriever(t, gen, docs, []vectorindex.Entry{
		{DocumentID: docID.String(), Vector: []float32{1, 0.1, 0}, Title: "Mine"},
		{DocumentID: strangerID.String(), Vector: []float32{1, 0, 0}, Title: "Theirs"},
	})
	model := &fakeModel{reply: "the answer"}
	convs := &fakeConvs{messages: map[uuid.UUID][]*conversation.Message{}, owner: owner}
	svc, err := NewService(docs, ret, model, convs, 100, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if _, err := svc.Ask(context.Background(), owner, docID, "what is in here?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	system := model.lastMessages[0].Content
	if !strings.Contains(system, "my document body") {
		t.Errorf("system message missing the caller's own document")
	}
	if strings.Contains(system, "another user's content") {
		t.Errorf("system message contains another user's document")
	}
}

func TestStreamChatNeverGroundsOnUnownedNeighbors(t *testing.T) {
	owner, docID, strangerID := uuid.New(), uuid.New(), uuid.New()
	docs := &fakeDocs{
		owned: map[string]uuid.UUID{docID.String(): owner},
		content: map[string][2]string{
			docID.String():      {"Mine", "my document body"},
			strangerID.String(): {"Theirs", "another user's content"},
		},
	}
	gen := &promptGenerator{vectors: map[string][]float32{
		"what is in here?": {1, 0, 0},
	}}
	ret := realRetriever(t, gen, docs, []vectorindex.Entry{
		{DocumentID: strangerID.String(), Vector: []float32{1, 0, 0}, Title: "Theirs"},
	})
	model := &fakeModel{streamParts: []string{"ok"}}
	convs := &fakeConvs{messages: map[uuid.UUID][]*conversation.Message{}, owner: owner}
	svc, err := NewService(docs, ret, model, convs, 100, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	seq, err := svc.StreamChat(context.Background(), owner, docID, []llm.Message{{Role: llm.RoleUser, Content: "what is in here?"}})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	for _, err := range seq {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
	}
	if strings.Contains(model.lastMessages[0].Content, "another user's content") {
		t.Errorf("system message contains another user's document")
	}
}
