package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"caagent/kb"
	"caagent/laws"
	"caagent/memory"
	"caagent/types"

	openai "github.com/sashabaranov/go-openai"
)

type mockChat struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	err       error
}

func (m *mockChat) Complete(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("mock exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			}},
		},
	}
}

func toolResponse(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				ToolCalls: calls,
			}},
		},
	}
}

func lawsCall(id, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      lawsToolName,
			Arguments: args,
		},
	}
}

type mockEmbedder struct {
	calls int
	vec   []float32
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

type mockStore struct {
	hits []types.Chunk
}

func (m *mockStore) Add(_ context.Context, _ []types.Chunk, _ [][]float32) error { return nil }
func (m *mockStore) Search(_ context.Context, _ []float32, topK int) ([]types.Chunk, error) {
	if topK > len(m.hits) {
		topK = len(m.hits)
	}
	return m.hits[:topK], nil
}
func (m *mockStore) Len(_ context.Context) int { return len(m.hits) }
func (m *mockStore) Persist() error            { return nil }

func testLaws(t *testing.T) *laws.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "laws.json")
	data := `{"17(5) CGST": "Blocked credit: ITC not available on motor vehicles, food, club memberships."}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	db, err := laws.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.Register(LawsTool(testLaws(t)))
	return reg
}

func newTestAgent(t *testing.T, chat *mockChat, hits []types.Chunk) *Agent {
	t.Helper()
	knowledge := kb.New(&mockEmbedder{vec: []float32{1, 0}}, &mockStore{hits: hits})
	return New(chat, knowledge, memory.NewStore(6), testRegistry(t), "gpt-4o-mini", 4)
}

func TestCallAgentDirectAnswer(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		textResponse("GST is a destination-based indirect tax."),
	}}
	sessions := memory.NewStore(6)
	knowledge := kb.New(&mockEmbedder{vec: []float32{1, 0}}, &mockStore{})
	a := New(chat, knowledge, sessions, testRegistry(t), "gpt-4o-mini", 4)

	res, err := a.CallAgent(context.Background(), "s1", "what is GST", true)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	if res.Answer != "GST is a destination-based indirect tax." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if res.ToolUsed != "" || res.ToolResult != nil {
		t.Errorf("direct branch must not report a tool: %+v", res)
	}
	if res.KBSources == nil || len(res.KBSources) != 0 {
		t.Errorf("expected empty non-nil sources, got %#v", res.KBSources)
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected single model call, got %d", len(chat.requests))
	}

	req := chat.requests[0]
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != lawsToolName {
		t.Errorf("first call must offer the laws tool, got %+v", req.Tools)
	}
	first := req.Messages[0]
	last := req.Messages[len(req.Messages)-1]
	if first.Role != openai.ChatMessageRoleSystem || !strings.Contains(first.Content, "CA-GPT") {
		t.Errorf("expected system prompt first, got %+v", first)
	}
	if last.Role != openai.ChatMessageRoleUser || last.Content != "what is GST" {
		t.Errorf("expected user question last, got %+v", last)
	}

	turns := sessions.Read("s1")
	if len(turns) != 2 || turns[0].Role != types.RoleUser || turns[1].Role != types.RoleAssistant {
		t.Errorf("expected question and answer remembered, got %+v", turns)
	}
}

func TestCallAgentToolBranch(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		toolResponse(lawsCall("call_1", `{"section":"17(5) CGST"}`)),
		textResponse("Per section 17(5) CGST, ITC is blocked for motor vehicles. Sources: laws DB."),
	}}
	sessions := memory.NewStore(6)
	knowledge := kb.New(&mockEmbedder{vec: []float32{1, 0}}, &mockStore{})
	a := New(chat, knowledge, sessions, testRegistry(t), "gpt-4o-mini", 4)

	res, err := a.CallAgent(context.Background(), "s1", "what does 17(5) say", true)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	if res.ToolUsed != lawsToolName {
		t.Errorf("expected tool_used %q, got %q", lawsToolName, res.ToolUsed)
	}
	lr, ok := res.ToolResult.(types.LawsResult)
	if !ok {
		t.Fatalf("expected LawsResult tool result, got %T", res.ToolResult)
	}
	if !lr.Found || lr.Section != "17(5) CGST" {
		t.Errorf("unexpected lookup result: %+v", lr)
	}
	if !strings.Contains(res.Answer, "17(5)") {
		t.Errorf("unexpected final answer: %q", res.Answer)
	}

	if len(chat.requests) != 2 {
		t.Fatalf("expected two model calls, got %d", len(chat.requests))
	}
	second := chat.requests[1]
	if len(second.Tools) != 0 {
		t.Error("finalization call must not offer tools")
	}
	toolMsg := second.Messages[len(second.Messages)-1]
	if toolMsg.Role != openai.ChatMessageRoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("expected tool result message last, got %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "Blocked credit") {
		t.Errorf("tool message must carry the lookup payload, got %q", toolMsg.Content)
	}
	assistantMsg := second.Messages[len(second.Messages)-2]
	if assistantMsg.Role != openai.ChatMessageRoleAssistant || len(assistantMsg.ToolCalls) != 1 {
		t.Errorf("expected assistant tool-call message before tool result, got %+v", assistantMsg)
	}

	turns := sessions.Read("s1")
	if len(turns) != 2 || !strings.Contains(turns[1].Content, "17(5)") {
		t.Errorf("expected final answer remembered, got %+v", turns)
	}
}

func TestCallAgentMalformedToolArgs(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		toolResponse(lawsCall("call_1", `17(5)`)),
		textResponse("done"),
	}}
	a := newTestAgent(t, chat, nil)

	res, err := a.CallAgent(context.Background(), "s1", "quote 17(5)", true)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	lr, ok := res.ToolResult.(types.LawsResult)
	if !ok {
		t.Fatalf("expected LawsResult, got %T", res.ToolResult)
	}
	// The raw argument string falls back to being the section query.
	if !lr.Found || lr.Section != "17(5) CGST" {
		t.Errorf("expected substring match from raw args, got %+v", lr)
	}
}

func TestCallAgentUnknownTool(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		toolResponse(openai.ToolCall{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "stock_price",
				Arguments: `{"ticker":"INFY"}`,
			},
		}),
		textResponse("I cannot look up stock prices."),
	}}
	a := newTestAgent(t, chat, nil)

	res, err := a.CallAgent(context.Background(), "s1", "INFY price?", true)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	te, ok := res.ToolResult.(types.ToolError)
	if !ok {
		t.Fatalf("expected ToolError, got %T", res.ToolResult)
	}
	if !strings.Contains(te.Error, "stock_price") {
		t.Errorf("tool error must name the unknown tool, got %q", te.Error)
	}
	if res.ToolUsed != "stock_price" {
		t.Errorf("unexpected tool_used: %q", res.ToolUsed)
	}
}

func TestCallAgentExecutesOnlyFirstToolCall(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		toolResponse(
			lawsCall("call_1", `{"section":"17(5) CGST"}`),
			lawsCall("call_2", `{"section":"80C"}`),
		),
		textResponse("done"),
	}}
	a := newTestAgent(t, chat, nil)

	if _, err := a.CallAgent(context.Background(), "s1", "q", true); err != nil {
		t.Fatalf("CallAgent: %v", err)
	}

	second := chat.requests[1]
	toolMessages := 0
	for _, m := range second.Messages {
		if m.Role == openai.ChatMessageRoleTool {
			toolMessages++
			if m.ToolCallID != "call_1" {
				t.Errorf("expected only the first call answered, got id %q", m.ToolCallID)
			}
		}
	}
	if toolMessages != 1 {
		t.Errorf("expected exactly one tool result message, got %d", toolMessages)
	}
}

func TestCallAgentInjectsKBChunks(t *testing.T) {
	long := strings.Repeat("x", 2000)
	hits := []types.Chunk{
		{File: "gst.md", Text: "ITC on motor vehicles is blocked."},
		{File: "gst.md", Text: long},
	}
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		textResponse("answer"),
	}}
	a := newTestAgent(t, chat, hits)

	res, err := a.CallAgent(context.Background(), "s1", "blocked credits?", true)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	if len(res.KBSources) != 2 || res.KBSources[0] != "gst.md" {
		t.Errorf("unexpected sources: %v", res.KBSources)
	}

	req := chat.requests[0]
	var kbBlocks []string
	for _, m := range req.Messages {
		if m.Role == openai.ChatMessageRoleSystem && strings.HasPrefix(m.Content, "KB_FILE: ") {
			kbBlocks = append(kbBlocks, m.Content)
		}
	}
	if len(kbBlocks) != 2 {
		t.Fatalf("expected 2 KB context blocks, got %d", len(kbBlocks))
	}
	if !strings.HasPrefix(kbBlocks[0], "KB_FILE: gst.md\nITC on motor vehicles") {
		t.Errorf("unexpected first KB block: %q", kbBlocks[0])
	}
	wantLen := len("KB_FILE: gst.md\n") + 1200
	if len(kbBlocks[1]) != wantLen {
		t.Errorf("long chunk must be capped at 1200 chars, block is %d chars", len(kbBlocks[1]))
	}
	// KB blocks sit directly before the user question.
	last := req.Messages[len(req.Messages)-1]
	if last.Role != openai.ChatMessageRoleUser {
		t.Errorf("user question must come last, got role %q", last.Role)
	}
}

func TestCallAgentUseKBFalseSkipsRetrieval(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	st := &mockStore{hits: []types.Chunk{{File: "gst.md", Text: "chunk"}}}
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		textResponse("answer"),
	}}
	a := New(chat, kb.New(emb, st), memory.NewStore(6), testRegistry(t), "gpt-4o-mini", 4)

	res, err := a.CallAgent(context.Background(), "s1", "q", false)
	if err != nil {
		t.Fatalf("CallAgent: %v", err)
	}
	if len(res.KBSources) != 0 {
		t.Errorf("expected no sources with KB off, got %v", res.KBSources)
	}
	if emb.calls != 0 {
		t.Errorf("embedder must not be called with KB off, got %d calls", emb.calls)
	}
}

func TestCallAgentCarriesSessionHistory(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{
		textResponse("first answer"),
		textResponse("second answer"),
	}}
	a := newTestAgent(t, chat, nil)
	ctx := context.Background()

	if _, err := a.CallAgent(ctx, "s1", "first question", true); err != nil {
		t.Fatalf("first CallAgent: %v", err)
	}
	if _, err := a.CallAgent(ctx, "s1", "second question", true); err != nil {
		t.Fatalf("second CallAgent: %v", err)
	}

	req := chat.requests[1]
	if len(req.Messages) != 4 {
		t.Fatalf("expected system + 2 history turns + question, got %d messages", len(req.Messages))
	}
	if req.Messages[1].Role != types.RoleUser || req.Messages[1].Content != "first question" {
		t.Errorf("expected prior question in history, got %+v", req.Messages[1])
	}
	if req.Messages[2].Role != types.RoleAssistant || req.Messages[2].Content != "first answer" {
		t.Errorf("expected prior answer in history, got %+v", req.Messages[2])
	}
	if req.Messages[3].Content != "second question" {
		t.Errorf("expected new question last, got %+v", req.Messages[3])
	}
}

func TestCallAgentProviderError(t *testing.T) {
	chat := &mockChat{err: errors.New("rate limited")}
	a := newTestAgent(t, chat, nil)

	if _, err := a.CallAgent(context.Background(), "s1", "q", true); err == nil {
		t.Error("expected provider error to propagate")
	}
}

func TestCallAgentNoChoices(t *testing.T) {
	chat := &mockChat{responses: []openai.ChatCompletionResponse{{}}}
	a := newTestAgent(t, chat, nil)

	if _, err := a.CallAgent(context.Background(), "s1", "q", true); err == nil {
		t.Error("expected error when model returns no choices")
	}
}
