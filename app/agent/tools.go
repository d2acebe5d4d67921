package agent

import (
	"encoding/json"
	"fmt"

	"caagent/laws"
	"caagent/types"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Handler executes one tool call. It receives the raw argument string
// exactly as the model produced it and always returns a result object;
// tools never fail the turn.
type Handler func(rawArgs string) any

// Registry maps tool names to their schema and handler. Adding a tool
// is a registration, not a new branch in the orchestration loop.
type Registry struct {
	order    []string
	defs     map[string]openai.FunctionDefinition
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]openai.FunctionDefinition),
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(def openai.FunctionDefinition, h Handler) {
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
	r.handlers[def.Name] = h
}

// Tools returns the function declarations offered to the model.
func (r *Registry) Tools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		tools = append(tools, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &def,
		})
	}
	return tools
}

// Dispatch runs the named tool. An unrecognized name yields an
// error-shaped result for the model to explain, not an execution.
func (r *Registry) Dispatch(name, rawArgs string) any {
	h, ok := r.handlers[name]
	if !ok {
		return types.ToolError{Error: fmt.Sprintf("Unknown tool %s", name)}
	}
	return h(rawArgs)
}

const lawsToolName = "laws_lookup"

// LawsTool builds the laws_lookup registration over the given DB.
func LawsTool(db *laws.DB) (openai.FunctionDefinition, Handler) {
	def := openai.FunctionDefinition{
		Name:        lawsToolName,
		Description: "Look up exact text of a law section from local laws DB (use for exact quotes).",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"section": {
					Type:        jsonschema.String,
					Description: "Section identifier, e.g. '17(5) CGST' or 'Section 115BA'",
				},
			},
			Required: []string{"section"},
		},
	}

	handler := func(rawArgs string) any {
		var args struct {
			Section string `json:"section"`
		}
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			// Best-effort recovery: treat the raw argument string as
			// the section identifier.
			args.Section = rawArgs
		}
		return db.Lookup(args.Section)
	}

	return def, handler
}
