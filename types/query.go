package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// AskRequest is the body of POST /ask. UseKB is a pointer so that an
// omitted field defaults to true rather than false.
type AskRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
	UseKB     *bool  `json:"use_kb"`
}

func (params *AskRequest) WantKB() bool {
	return params.UseKB == nil || *params.UseKB
}

type AskResponse struct {
	Answer     string   `json:"answer"`
	KBSources  []string `json:"kb_sources"`
	ToolUsed   *string  `json:"tool_used"`
	ToolResult any      `json:"tool_result"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AskRequest) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
