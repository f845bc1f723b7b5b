package services

import "fmt"

// Platform error codes shared by the mock and live implementations. The live
// client normalizes TikTok numeric codes onto these where it can; anything
// else falls through Classify's default row.
const (
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeMusicNotFound           = "MUSIC_NOT_FOUND"
	CodeInvalidMusicID          = "INVALID_MUSIC_ID"
	CodeGeoRestricted           = "GEO_RESTRICTED"
	CodeNetworkError            = "NETWORK_ERROR"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrorInfo is the user-facing interpretation of a platform error code.
// Retryable here is the only place retry policy is decided; callers must
// consult it before offering a retry to the user.
type ErrorInfo struct {
	Explanation string   `json:"explanation"`
	Action      string   `json:"action"`
	Retryable   bool     `json:"retryable"`
	Severity    Severity `json:"severity"`
}

var errorTable = map[string]ErrorInfo{
	CodeInvalidToken: {
		Explanation: "Your TikTok access token has expired or is invalid.",
		Action:      "I'll attempt to refresh your token automatically. If this fails, you'll need to re-authenticate with TikTok.",
		Retryable:   true,
		Severity:    SeverityMedium,
	},
	CodeInsufficientPermissions: {
		Explanation: "Your TikTok app doesn't have the required permissions to create ads.",
		Action:      "Go to TikTok Developer Portal -> Your App -> Permissions, enable the 'Ads Management' scope, then re-authenticate.",
		Retryable:   false,
		Severity:    SeverityHigh,
	},
	CodeMusicNotFound: {
		Explanation: "The music ID you provided doesn't exist in TikTok's library or has been removed.",
		Action:      "You can try a different music ID, upload your own track, or proceed without music if your objective allows it.",
		Retryable:   false,
		Severity:    SeverityLow,
	},
	CodeInvalidMusicID: {
		Explanation: "This music track cannot be used for TikTok ads, possibly due to licensing restrictions.",
		Action:      "Choose a different track from TikTok's library or upload your own music with proper licensing.",
		Retryable:   false,
		Severity:    SeverityMedium,
	},
	CodeGeoRestricted: {
		Explanation: "This feature is not available in your geographical region.",
		Action:      "TikTok Ads API has regional restrictions. You may need a different account or TikTok Business support.",
		Retryable:   false,
		Severity:    SeverityHigh,
	},
	CodeNetworkError: {
		Explanation: "A network problem prevented the request from reaching TikTok.",
		Action:      "Check your connection and try again in a moment.",
		Retryable:   true,
		Severity:    SeverityLow,
	},
}

// Classify maps a platform error code to its user-facing interpretation.
// Unknown codes never panic; they get the generic retryable row with the
// original code preserved in the explanation.
func Classify(code string) ErrorInfo {
	if info, ok := errorTable[code]; ok {
		return info
	}
	return ErrorInfo{
		Explanation: fmt.Sprintf("An unexpected error occurred: %s", code),
		Action:      "Please try again. If the issue persists, contact support.",
		Retryable:   true,
		Severity:    SeverityMedium,
	}
}
