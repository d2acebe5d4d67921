package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"caagent/kb"
	"caagent/memory"
	"caagent/model"
	"caagent/types"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are CA-GPT, a helpful Chartered Accountant assistant for Indian accounting, GST, income tax, and company law.
- Answer concisely and accurately. If unsure, say you are unsure and ask clarifying questions.
- Do NOT hallucinate law text. If exact law text is needed, call the 'laws_lookup' tool.
- If local KB passages are provided, use them and cite filenames.
- For final answers that reference law sections, include a short 'Sources:' list.`

const (
	// Each injected KB chunk is capped to this many characters.
	kbBlockLimit = 1200
	// Output budgets for the first (tool-deciding) and second
	// (finalizing) model calls.
	maxToolRoundTokens = 500
	maxFinalTokens     = 700
)

// Agent runs the retrieval + tool-orchestration loop for one question
// at a time. All collaborators are injected; the agent holds no global
// state.
type Agent struct {
	chat      model.ChatCompleter
	kb        *kb.KnowledgeBase
	sessions  memory.Sessions
	tools     *Registry
	chatModel string
	topK      int
	logger    *slog.Logger
}

func New(chat model.ChatCompleter, knowledge *kb.KnowledgeBase, sessions memory.Sessions, tools *Registry, chatModel string, topK int) *Agent {
	return &Agent{
		chat:      chat,
		kb:        knowledge,
		sessions:  sessions,
		tools:     tools,
		chatModel: chatModel,
		topK:      topK,
		logger:    slog.Default(),
	}
}

// buildBaseMessages assembles the ordered message list: system prompt,
// the session's trailing memory window, one system context block per
// retrieved chunk, and the user question last. It also returns the
// source filenames of the injected chunks in order; duplicates are
// possible when several chunks share a file.
func (a *Agent) buildBaseMessages(ctx context.Context, sessionID, question string, useKB bool) ([]openai.ChatCompletionMessage, []string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}

	for _, turn := range a.sessions.Read(sessionID) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	sources := []string{}
	if useKB && a.kb.Enabled(ctx) {
		hits, err := a.kb.Search(ctx, question, a.topK)
		if err != nil {
			return nil, nil, err
		}
		for _, h := range hits {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("KB_FILE: %s\n%s", h.File, truncate(h.Text, kbBlockLimit)),
			})
			sources = append(sources, h.File)
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
	return messages, sources, nil
}

// CallAgent answers one question: assemble the prompt, let the model
// decide on a tool call, execute at most one tool, and finalize. The
// finished turn is appended to session memory in both branches.
// Provider errors are not caught here; they propagate to the transport.
func (a *Agent) CallAgent(ctx context.Context, sessionID, question string, useKB bool) (types.AgentResult, error) {
	messages, kbSources, err := a.buildBaseMessages(ctx, sessionID, question, useKB)
	if err != nil {
		return types.AgentResult{}, err
	}

	a.logger.Info("prompt assembled",
		"session", sessionID,
		"messages", len(messages),
		"kb_chunks", len(kbSources),
		"tokens", countTokens(messages),
	)

	resp, err := a.chat.Complete(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		Tools:       a.tools.Tools(),
		ToolChoice:  "auto",
		Temperature: 0,
		MaxTokens:   maxToolRoundTokens,
	})
	if err != nil {
		return types.AgentResult{}, err
	}
	if len(resp.Choices) == 0 {
		return types.AgentResult{}, errors.New("model returned no choices")
	}
	choice := resp.Choices[0].Message

	if len(choice.ToolCalls) == 0 {
		a.remember(sessionID, question, choice.Content)
		return types.AgentResult{
			Answer:    choice.Content,
			KBSources: kbSources,
		}, nil
	}

	// Single-tool policy: only the first requested call is executed,
	// any extras are dropped.
	if len(choice.ToolCalls) > 1 {
		a.logger.Warn("model requested multiple tool calls, executing only the first",
			"requested", len(choice.ToolCalls))
	}
	toolCall := choice.ToolCalls[0]
	toolResult := a.tools.Dispatch(toolCall.Function.Name, toolCall.Function.Arguments)

	resultPayload, err := json.Marshal(toolResult)
	if err != nil {
		return types.AgentResult{}, fmt.Errorf("encode tool result: %w", err)
	}

	messages = append(messages,
		openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   choice.Content,
			ToolCalls: []openai.ToolCall{toolCall},
		},
		openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(resultPayload),
			ToolCallID: toolCall.ID,
		},
	)

	// Second round: no tool capability offered, the model must answer.
	followup, err := a.chat.Complete(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   maxFinalTokens,
	})
	if err != nil {
		return types.AgentResult{}, err
	}
	if len(followup.Choices) == 0 {
		return types.AgentResult{}, errors.New("model returned no choices on finalization")
	}
	final := followup.Choices[0].Message.Content

	a.remember(sessionID, question, final)
	return types.AgentResult{
		Answer:     final,
		KBSources:  kbSources,
		ToolUsed:   toolCall.Function.Name,
		ToolResult: toolResult,
	}, nil
}

func (a *Agent) remember(sessionID, question, answer string) {
	a.sessions.Append(sessionID,
		types.Turn{Role: types.RoleUser, Content: question},
		types.Turn{Role: types.RoleAssistant, Content: answer},
	)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// countTokens reports the token size of the assembled prompt. The
// cl100k encoding is close enough for logging across chat models.
func countTokens(messages []openai.ChatCompletionMessage) int {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total
}
