package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"tiktok-ads-agent/internal/models"
)

const greeting = "Hello! I'm your TikTok Ads assistant. Let's create an ad campaign together.\n\n" +
	"What would you like to name your campaign? (Minimum 3 characters)"

const fallbackMessage = "I apologize, I ran into a problem generating a response. Could you rephrase that and we'll try again?"

// ConversationService orchestrates one turn at a time: user input goes to the
// LLM collaborator, the proposed state delta is merged, the proposed action
// is dispatched against the platform, and failures come back classified with
// remediation text. A capability failure never terminates the conversation.
type ConversationService struct {
	Platform PlatformAPI
	LLM      Collaborator

	convMu sync.Mutex
	conv   map[string]*conversationState
}

func NewConversationService(platform PlatformAPI, llm Collaborator) *ConversationService {
	return &ConversationService{
		Platform: platform,
		LLM:      llm,
		conv:     map[string]*conversationState{},
	}
}

func (c *ConversationService) state(conversationID string) *conversationState {
	c.convMu.Lock()
	defer c.convMu.Unlock()
	st, ok := c.conv[conversationID]
	if !ok {
		st = &conversationState{}
		c.conv[conversationID] = st
	}
	return st
}

// Process runs a full turn and always returns a user-facing message: LLM
// protocol failures degrade to a fallback reply and anything unexpected is
// recovered at this boundary.
func (c *ConversationService) Process(ctx context.Context, conversationID, userText string) (answer string, err error) {
	st := c.state(conversationID)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("conversation %s: recovered: %v", conversationID, r)
			answer = "I apologize, something went wrong on my side. Could you please try again?"
			st.appendTurn("assistant", answer)
			err = nil
		}
	}()

	st.appendTurn("user", userText)

	reply, perr := c.LLM.Propose(ctx, st.history, st.snapshot())
	if perr != nil {
		log.Printf("conversation %s: collaborator failed: %v", conversationID, perr)
		reply = models.AgentReply{Message: fallbackMessage, Action: models.ActionCollect}
	}

	st.mergeDelta(reply.State)

	msg := reply.Message
	switch reply.Action {
	case models.ActionValidateMusic:
		msg = c.validateMusic(st)
	case models.ActionUploadMusic:
		msg = c.uploadMusic(st, reply.Message, userText)
	case models.ActionSubmit:
		msg = c.submit(st)
	}

	st.appendTurn("assistant", msg)
	return msg, nil
}

func (c *ConversationService) validateMusic(st *conversationState) string {
	ref := strings.TrimSpace(models.StrVal(st.snapshot().MusicID))
	if ref == "" {
		return "Please provide a music ID to validate."
	}

	res := c.Platform.ValidateMusic(ref)
	if !res.OK {
		return formatFailure(res, false)
	}
	m := res.Music
	return fmt.Sprintf(
		"Music validated successfully!\n\nTrack: %s\nArtist: %s\nDuration: %ds\n\nGreat choice! What would you like your ad text to say? (Max 100 characters)",
		m.Title, m.Artist, m.Duration,
	)
}

// uploadMusic keeps the proposed conversational message and appends the
// upload confirmation to it.
func (c *ConversationService) uploadMusic(st *conversationState, proposed, source string) string {
	res := c.Platform.UploadMusic(strings.TrimSpace(source))
	if !res.OK {
		return formatFailure(res, false)
	}

	st.mergeDelta(models.AdConfig{MusicID: &res.Music.MusicID})
	note := fmt.Sprintf(
		"Music uploaded successfully!\n\nMusic ID: %s\nFile: %s\nStatus: %s",
		res.Music.MusicID, res.Music.Title, res.Music.Status,
	)
	if proposed = strings.TrimSpace(proposed); proposed != "" {
		return proposed + "\n\n" + note
	}
	return note
}

func (c *ConversationService) submit(st *conversationState) string {
	cfg := st.snapshot()
	if violations := ValidateConfig(cfg); len(violations) > 0 {
		// Submission is blocked by rule violations; no platform call is made.
		return "Submission blocked. Please fix the following:\n" + formatViolations(violations)
	}

	res := c.Platform.SubmitAd(cfg)
	if !res.OK {
		return formatFailure(res, true)
	}

	ad := res.Ad
	return fmt.Sprintf(
		"Success! Your TikTok ad has been created.\n\nAd ID: %s\nCampaign ID: %s\nStatus: %s\n\nCampaign: %s (%s)\n\nYour ad is now pending review by TikTok. Want to create another campaign?",
		ad.AdID, ad.CampaignID, ad.Status, ad.CampaignName, ad.Objective,
	)
}

// formatFailure converts a classified platform failure into remediation text.
// A retry is only offered when the classifier says the code is retryable and
// the operation is one the user can sensibly re-run.
func formatFailure(res Result, offerRetry bool) string {
	info := Classify(res.Code)
	msg := fmt.Sprintf("%s\n\nWhat to do: %s", info.Explanation, info.Action)
	if offerRetry && info.Retryable {
		msg += "\n\nWould you like me to retry the submission?"
	}
	return msg
}

// Reset discards the conversation's history and configuration atomically and
// starts over with a fresh greeting.
func (c *ConversationService) Reset(conversationID string) string {
	c.convMu.Lock()
	defer c.convMu.Unlock()
	c.conv[conversationID] = &conversationState{}
	return greeting
}

// Summary renders the current configuration for display.
func (c *ConversationService) Summary(conversationID string) (string, models.AdConfig) {
	st := c.state(conversationID)
	return st.summary(), st.snapshot()
}
