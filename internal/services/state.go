package services

import (
	"fmt"
	"strings"

	"tiktok-ads-agent/internal/models"
)

// conversationState is one conversation's accumulated data: append-only
// message history plus the campaign under construction. Turns run one at a
// time, so the orchestrator's map mutex is the only guard needed.
type conversationState struct {
	history []models.Message
	config  models.AdConfig
}

func (s *conversationState) appendTurn(role, content string) {
	s.history = append(s.history, models.Message{Role: role, Content: content})
}

// mergeDelta applies a partial update field-wise: a present value overwrites,
// an absent one is a no-op. Nothing here ever clears a field. Campaign names
// are stored trimmed.
func (s *conversationState) mergeDelta(delta models.AdConfig) {
	if delta.CampaignName != nil {
		trimmed := strings.TrimSpace(*delta.CampaignName)
		s.config.CampaignName = &trimmed
	}
	if delta.Objective != nil {
		v := *delta.Objective
		s.config.Objective = &v
	}
	if delta.AdText != nil {
		v := *delta.AdText
		s.config.AdText = &v
	}
	if delta.CTA != nil {
		v := *delta.CTA
		s.config.CTA = &v
	}
	if delta.MusicID != nil {
		v := *delta.MusicID
		s.config.MusicID = &v
	}
}

// snapshot returns a copy safe to hand to validation and display; the
// pointed-to strings are re-allocated so callers cannot mutate state.
func (s *conversationState) snapshot() models.AdConfig {
	var out models.AdConfig
	out.CampaignName = copyField(s.config.CampaignName)
	out.Objective = copyField(s.config.Objective)
	out.AdText = copyField(s.config.AdText)
	out.CTA = copyField(s.config.CTA)
	out.MusicID = copyField(s.config.MusicID)
	return out
}

func (s *conversationState) reset() {
	s.history = nil
	s.config = models.AdConfig{}
}

func copyField(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func summaryLine(label string, p *string) string {
	v := "not set"
	if p != nil {
		v = *p
	}
	return fmt.Sprintf("%s: %s", label, v)
}

// summary renders the snapshot for display, with a completion count.
func (s *conversationState) summary() string {
	cfg := s.config
	set := 0
	for _, p := range []*string{cfg.CampaignName, cfg.Objective, cfg.AdText, cfg.CTA, cfg.MusicID} {
		if p != nil {
			set++
		}
	}
	lines := []string{
		"Current ad configuration",
		summaryLine("Campaign name", cfg.CampaignName),
		summaryLine("Objective", cfg.Objective),
		summaryLine("Ad text", cfg.AdText),
		summaryLine("CTA", cfg.CTA),
		summaryLine("Music ID", cfg.MusicID),
		fmt.Sprintf("Completion: %d/5 fields", set),
	}
	return strings.Join(lines, "\n")
}
