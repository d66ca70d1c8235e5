// Package profile owns the catalog of summarization profiles: the fixed
// built-in set plus user-defined custom entries. A profile bundles the
// system prompt, the user prompt template and optional per-call overrides
// (timeout, streaming, sampling) applied when text is processed.
package profile

import (
	"strings"
	"time"
)

// Token is the placeholder in a user prompt template that gets replaced
// with the raw transcription text.
const Token = "{transcription}"

// PassthroughID identifies the built-in profile that bypasses the model
// entirely and returns input unchanged.
const PassthroughID = "raw"

const (
	maxNameLen        = 50
	maxDescriptionLen = 200
	maxSystemLen      = 1000
	maxTemplateLen    = 500
)

type Profile struct {
	ID                 string     `json:"id" yaml:"id"`
	Name               string     `json:"name" yaml:"name"`
	Description        string     `json:"description" yaml:"description"`
	SystemPrompt       string     `json:"system_prompt" yaml:"system_prompt"`
	UserPromptTemplate string     `json:"user_prompt_template" yaml:"user_prompt_template"`
	IsBuiltIn          bool       `json:"is_built_in" yaml:"is_built_in"`
	TimeoutSeconds     *int       `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	Streaming          *bool      `json:"streaming,omitempty" yaml:"streaming,omitempty"`
	Temperature        *float64   `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP               *float64   `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	CreatedAt          *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsPassthrough reports whether this profile bypasses model invocation.
func (p Profile) IsPassthrough() bool {
	return p.ID == PassthroughID
}

// FormatPrompt substitutes raw into every occurrence of Token in the user
// prompt template. The substitution is a single left-to-right pass; tokens
// inside the inserted text are never expanded.
func (p Profile) FormatPrompt(raw string) string {
	return strings.ReplaceAll(p.UserPromptTemplate, Token, raw)
}

// ValidationError reports a save-time profile validation failure for a
// specific field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid profile " + e.Field + ": " + e.Reason
}

// Validate checks the field constraints enforced when a custom profile is
// saved. Built-in profiles are constructed in-package and never validated.
func Validate(p Profile) error {
	if strings.TrimSpace(p.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len([]rune(p.Name)) > maxNameLen {
		return &ValidationError{Field: "name", Reason: "must be at most 50 characters"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if len([]rune(p.Description)) > maxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "must be at most 200 characters"}
	}
	if len([]rune(p.SystemPrompt)) > maxSystemLen {
		return &ValidationError{Field: "system_prompt", Reason: "must be at most 1000 characters"}
	}
	if len([]rune(p.UserPromptTemplate)) > maxTemplateLen {
		return &ValidationError{Field: "user_prompt_template", Reason: "must be at most 500 characters"}
	}
	if !strings.Contains(p.UserPromptTemplate, Token) {
		return &ValidationError{Field: "user_prompt_template", Reason: "must contain the " + Token + " placeholder"}
	}
	return nil
}

// BuiltIns returns the fixed profile set shipped with the daemon, the
// passthrough profile last. The slice is freshly allocated on every call.
func BuiltIns() []Profile {
	return []Profile{
		{
			ID:                 "professional",
			Name:               "Professional",
			Description:        "Formal tone suitable for workplace communication",
			SystemPrompt:       "You are a professional writing assistant. Convert casual speech into polished, professional text suitable for workplace communication. Fix grammar, remove filler words, and use formal tone while maintaining the original meaning.",
			UserPromptTemplate: "Convert this speech transcription into professional text:\n\n{transcription}",
			IsBuiltIn:          true,
		},
		{
			ID:                 "llm_agent",
			Name:               "LLM Agent Instructions",
			Description:        "Clear, structured instructions for AI agents",
			SystemPrompt:       "You are a technical instruction optimizer. Convert natural speech into clear, structured instructions for AI agents. Use imperative voice, be specific and unambiguous, and remove conversational elements.",
			UserPromptTemplate: "Convert this speech into a clear instruction for an AI agent:\n\n{transcription}",
			IsBuiltIn:          true,
		},
		{
			ID:                 "email",
			Name:               "Email",
			Description:        "Well-formatted email with proper structure",
			SystemPrompt:       "You are an email writing assistant. Convert speech into a well-formatted email. Add appropriate greeting and closing if missing, use proper paragraphs, and maintain professional yet friendly tone.",
			UserPromptTemplate: "Convert this speech into a well-formatted email:\n\n{transcription}",
			IsBuiltIn:          true,
		},
		{
			ID:                 "notes",
			Name:               "Notes",
			Description:        "Concise bullet points and key phrases",
			SystemPrompt:       "You are a note-taking assistant. Convert speech into concise, well-organized notes using bullet points. Extract key information and organize logically.",
			UserPromptTemplate: "Convert this speech into organized notes:\n\n{transcription}",
			IsBuiltIn:          true,
		},
		{
			ID:                 "code_comments",
			Name:               "Code Comments",
			Description:        "Technical documentation style",
			SystemPrompt:       "You are a technical documentation assistant. Convert speech into clear, concise code comments or documentation. Use technical language appropriately and be precise.",
			UserPromptTemplate: "Convert this speech into a code comment or technical documentation:\n\n{transcription}",
			IsBuiltIn:          true,
		},
		{
			ID:          PassthroughID,
			Name:        "Raw (No Processing)",
			Description: "Bypass summarization, paste raw transcription",
			IsBuiltIn:   true,
		},
	}
}
