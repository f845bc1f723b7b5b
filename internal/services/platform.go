package services

import (
	"log"
	"os"
	"strings"

	"tiktok-ads-agent/internal/models"
)

func debugEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("GO_LOG")))
	return v == "debug" || v == "1" || v == "true"
}

func debugLogf(format string, args ...any) {
	if !debugEnabled() {
		return
	}
	log.Printf(format, args...)
}

// MusicInfo is the descriptive metadata returned for a validated or
// uploaded track.
type MusicInfo struct {
	MusicID  string `json:"music_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Status   string `json:"status,omitempty"`
}

// AdReceipt is the platform's acknowledgement of a submitted ad.
type AdReceipt struct {
	AdID         string `json:"ad_id"`
	CampaignID   string `json:"campaign_id,omitempty"`
	Status       string `json:"status,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	Objective    string `json:"objective,omitempty"`
}

// Result is the typed outcome of every platform call. Expected failures are
// values, not errors: Code is a lookup key for Classify, never raw text shown
// to the user on its own.
type Result struct {
	OK      bool
	Code    string
	Message string
	Music   *MusicInfo
	Ad      *AdReceipt
}

func failure(code, message string) Result {
	return Result{Code: code, Message: message}
}

func success() Result {
	return Result{OK: true}
}

// PlatformAPI abstracts the advertising platform. Two implementations share
// the contract: MockPlatform for rehearsal without network dependency and
// LivePlatform for the real TikTok Business API.
type PlatformAPI interface {
	// EnsureCredential succeeds when a non-expired credential exists
	// (checked against a safety buffer), attempting exactly one refresh
	// otherwise. Idempotent and side-effect-free on the success path.
	EnsureCredential() Result
	// ValidateMusic checks a reference against the platform catalogue.
	// Credential failures from the pre-check propagate unchanged.
	ValidateMusic(musicID string) Result
	// UploadMusic registers a new track and returns its platform-assigned
	// reference, immediately valid for ValidateMusic.
	UploadMusic(source string) Result
	// SubmitAd creates the ad. On a credential rejection mid-call it
	// performs exactly one refresh-and-retry before surfacing the failure.
	SubmitAd(cfg models.AdConfig) Result
	// AuthURL builds the authorization URL, persisting a fresh anti-forgery
	// state for the callback to verify.
	AuthURL() (string, error)
}

// CredentialExchanger is the slice of the platform the OAuth callback
// listener needs. It communicates with the conversation flow only through
// the durable token file.
type CredentialExchanger interface {
	VerifyState(state string) bool
	ExchangeCode(code string) error
}
