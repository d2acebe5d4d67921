package api

import (
	"caagent/app/agent"
	"caagent/types"

	"github.com/gofiber/fiber/v2"
)

type AskHandler struct {
	agent *agent.Agent
}

func NewAskHandler(a *agent.Agent) *AskHandler {
	return &AskHandler{agent: a}
}

// HandleAsk answers one question for a session. Agent failures bubble
// up to the fiber error handler; there is no retry at this layer.
func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskRequest
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	result, err := h.agent.CallAgent(c.Context(), params.SessionID, params.Question, params.WantKB())
	if err != nil {
		return err
	}

	resp := types.AskResponse{
		Answer:     result.Answer,
		KBSources:  result.KBSources,
		ToolResult: result.ToolResult,
	}
	if result.ToolUsed != "" {
		resp.ToolUsed = &result.ToolUsed
	}
	return c.JSON(resp)
}
