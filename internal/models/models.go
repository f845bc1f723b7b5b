package models

import "strings"

const (
	ObjectiveTraffic     = "Traffic"
	ObjectiveConversions = "Conversions"
)

// AdConfig is the campaign under construction. Pointer fields distinguish
// "not collected yet" from an explicit empty value, so the same type doubles
// as a partial state delta proposed by the agent.
type AdConfig struct {
	CampaignName *string `json:"campaign_name,omitempty"`
	Objective    *string `json:"objective,omitempty"`
	AdText       *string `json:"ad_text,omitempty"`
	CTA          *string `json:"cta,omitempty"`
	MusicID      *string `json:"music_id,omitempty"`
}

// Violation is a single failed business rule, scoped to a field.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent actions the LLM may request for a turn.
const (
	ActionCollect       = "collect"
	ActionValidateMusic = "validate_music"
	ActionUploadMusic   = "upload_music"
	ActionSubmit        = "submit"
)

// AgentReply is the structured response expected from the LLM collaborator.
type AgentReply struct {
	Message   string   `json:"message"`
	Reasoning string   `json:"reasoning,omitempty"`
	State     AdConfig `json:"state,omitempty"`
	Action    string   `json:"action"`
	Errors    []string `json:"errors,omitempty"`
}

func ValidAction(action string) bool {
	switch strings.TrimSpace(action) {
	case ActionCollect, ActionValidateMusic, ActionUploadMusic, ActionSubmit:
		return true
	}
	return false
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type ChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Greeting       string `json:"greeting"`
}

type ConfigResponse struct {
	Summary string   `json:"summary"`
	Config  AdConfig `json:"config"`
}

// StrVal dereferences an optional field for display and validation.
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr is a small helper for building deltas and test fixtures.
func StrPtr(s string) *string {
	return &s
}
