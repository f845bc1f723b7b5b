package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tiktok-ads-agent/internal/models"
)

const systemPrompt = `You are an expert TikTok Ads assistant helping users create ad campaigns.

Guide the user through creating a campaign by collecting all required information conversationally while enforcing these business rules:
1. Campaign name: minimum 3 characters, required
2. Objective: must be either "Traffic" or "Conversions" (case-sensitive)
3. Ad text: maximum 100 characters, required
4. CTA (Call-to-Action): required
5. Music logic: objective "Conversions" REQUIRES music (a music ID or an upload); objective "Traffic" makes music OPTIONAL. Music IDs must be validated via the API before submission.

Workflow: greet, collect campaign name, objective, music (per the rules above), ad text, CTA; confirm details; then submit.

Always respond through the respond function with:
- message: your conversational reply to the user
- action: one of "collect", "validate_music", "upload_music", "submit"
- state: only fields the user just provided (omit everything else, never null out a field)
- errors: rule violations you noticed, if any

Use action "validate_music" when the user provides a music ID, "upload_music" when they want to upload their own track, "submit" only after every field is collected and confirmed. Otherwise use "collect".

Be friendly and concise; when rejecting input, explain which rule it breaks and offer an alternative.`

// respondFunction is the schema forced on every completion so replies come
// back as parseable JSON rather than prose.
var respondFunction = OpenAIFunction{
	Name:        "respond",
	Description: "Generate the structured agent response",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message":   map[string]any{"type": "string", "description": "Conversational response to the user"},
			"reasoning": map[string]any{"type": "string", "description": "Internal thought process"},
			"state": map[string]any{
				"type":        "object",
				"description": "Fields the user provided this turn",
				"properties": map[string]any{
					"campaign_name": map[string]any{"type": []string{"string", "null"}},
					"objective":     map[string]any{"type": []string{"string", "null"}},
					"ad_text":       map[string]any{"type": []string{"string", "null"}},
					"cta":           map[string]any{"type": []string{"string", "null"}},
					"music_id":      map[string]any{"type": []string{"string", "null"}},
				},
			},
			"action": map[string]any{
				"type": "string",
				"enum": []string{models.ActionCollect, models.ActionValidateMusic, models.ActionUploadMusic, models.ActionSubmit},
			},
			"errors": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"message", "action"},
	},
}

// Collaborator produces a proposed reply, action and state delta for one
// turn. It is an untrusted input source: output is schema-checked before use.
type Collaborator interface {
	Propose(ctx context.Context, history []models.Message, cfg models.AdConfig) (models.AgentReply, error)
}

// rawChatter is the slice of OpenAIClient the collaborator needs.
type rawChatter interface {
	ChatWithFunction(messages []OpenAIMessage, fn OpenAIFunction) (string, error)
}

// OpenAICollaborator drives the LLM and enforces the reply contract with at
// most one corrective retry.
type OpenAICollaborator struct {
	Client rawChatter
}

func (c *OpenAICollaborator) buildMessages(history []models.Message, cfg models.AdConfig) []OpenAIMessage {
	msgs := make([]OpenAIMessage, 0, len(history)+2)
	msgs = append(msgs, OpenAIMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, OpenAIMessage{Role: m.Role, Content: m.Content})
	}
	ctxJSON, _ := json.Marshal(cfg)
	msgs = append(msgs, OpenAIMessage{Role: "system", Content: "Current ad configuration state: " + string(ctxJSON)})
	return msgs
}

// Propose retries exactly once on malformed output, appending the error
// description to context; the second failure surfaces to the caller, which
// falls back to a canned reply.
func (c *OpenAICollaborator) Propose(ctx context.Context, history []models.Message, cfg models.AdConfig) (models.AgentReply, error) {
	msgs := c.buildMessages(history, cfg)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.AgentReply{}, err
		}
		raw, err := c.Client.ChatWithFunction(msgs, respondFunction)
		if err != nil {
			lastErr = err
		} else {
			reply, perr := parseAgentReply(raw)
			if perr == nil {
				return reply, nil
			}
			lastErr = perr
		}
		debugLogf("agent: attempt %d failed: %v", attempt+1, lastErr)
		msgs = append(msgs, OpenAIMessage{
			Role:    "system",
			Content: fmt.Sprintf("Your previous response was invalid: %v. Reply again via the respond function with valid JSON.", lastErr),
		})
	}
	return models.AgentReply{}, lastErr
}

// parseAgentReply unwraps markdown fences some models insist on, then
// enforces the reply schema.
func parseAgentReply(raw string) (models.AgentReply, error) {
	raw = stripJSONFences(raw)

	var reply models.AgentReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return models.AgentReply{}, fmt.Errorf("agent reply is not valid JSON: %w", err)
	}
	if strings.TrimSpace(reply.Message) == "" {
		return models.AgentReply{}, fmt.Errorf("agent reply missing message")
	}
	reply.Action = strings.TrimSpace(reply.Action)
	if reply.Action == "" {
		reply.Action = models.ActionCollect
	}
	if !models.ValidAction(reply.Action) {
		return models.AgentReply{}, fmt.Errorf("agent reply has unknown action %q", reply.Action)
	}
	return reply, nil
}

func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}
