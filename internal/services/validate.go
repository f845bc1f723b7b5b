package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"tiktok-ads-agent/internal/models"
)

const maxAdTextLen = 100

// ValidateConfig checks every business rule and reports all violations at
// once rather than stopping at the first, so the user can fix a whole batch.
// Rule order is fixed: campaign_name, objective, ad_text, cta, music_id.
// Length limits count characters, not bytes.
func ValidateConfig(cfg models.AdConfig) []models.Violation {
	var out []models.Violation

	name := strings.TrimSpace(models.StrVal(cfg.CampaignName))
	if utf8.RuneCountInString(name) < 3 {
		out = append(out, models.Violation{
			Field:  "campaign_name",
			Reason: "Campaign name must be at least 3 characters",
		})
	}

	obj := models.StrVal(cfg.Objective)
	if obj != models.ObjectiveTraffic && obj != models.ObjectiveConversions {
		out = append(out, models.Violation{
			Field:  "objective",
			Reason: "Objective must be 'Traffic' or 'Conversions'",
		})
	}

	if cfg.AdText == nil {
		out = append(out, models.Violation{
			Field:  "ad_text",
			Reason: "Ad text is required",
		})
	} else if n := utf8.RuneCountInString(*cfg.AdText); n > maxAdTextLen {
		out = append(out, models.Violation{
			Field:  "ad_text",
			Reason: fmt.Sprintf("Ad text cannot exceed %d characters (current: %d)", maxAdTextLen, n),
		})
	}

	if strings.TrimSpace(models.StrVal(cfg.CTA)) == "" {
		out = append(out, models.Violation{
			Field:  "cta",
			Reason: "Call-to-action is required",
		})
	}

	if obj == models.ObjectiveConversions && cfg.MusicID == nil {
		out = append(out, models.Violation{
			Field:  "music_id",
			Reason: "Music is required when objective is 'Conversions'. Provide a music ID or upload a track",
		})
	}
	if cfg.MusicID != nil && strings.TrimSpace(*cfg.MusicID) == "" {
		out = append(out, models.Violation{
			Field:  "music_id",
			Reason: "Music ID cannot be empty",
		})
	}

	return out
}

// Submittable reports whether the configuration passes the full ruleset.
func Submittable(cfg models.AdConfig) bool {
	return len(ValidateConfig(cfg)) == 0
}

func formatViolations(violations []models.Violation) string {
	var b strings.Builder
	for _, v := range violations {
		b.WriteString("- ")
		b.WriteString(v.String())
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
