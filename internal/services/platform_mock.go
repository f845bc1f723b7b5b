package services

import (
	"fmt"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tiktok-ads-agent/internal/models"
)

// MockPlatform simulates the TikTok Ads API for development and failure
// rehearsal: a fixed music catalogue, immediately-valid uploads, and
// per-call-class random failure injection.
type MockPlatform struct {
	mu               sync.Mutex
	rng              *rand.Rand
	simulateFailures bool
	failureRate      float64
	connected        bool
	catalogue        map[string]struct{}
	uploaded         map[string]string
}

// NewMockPlatform builds a connected mock. rng may be nil; pass a seeded
// source to make failure injection deterministic in tests.
func NewMockPlatform(simulateFailures bool, failureRate float64, rng *rand.Rand) *MockPlatform {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	catalogue := map[string]struct{}{}
	for _, id := range []string{"12345", "67890", "11111", "22222", "33333"} {
		catalogue[id] = struct{}{}
	}
	return &MockPlatform{
		rng:              rng,
		simulateFailures: simulateFailures,
		failureRate:      failureRate,
		connected:        true,
		catalogue:        catalogue,
		uploaded:         map[string]string{},
	}
}

func (m *MockPlatform) roll(threshold float64) bool {
	if !m.simulateFailures || threshold <= 0 {
		return false
	}
	return m.rng.Float64() < threshold
}

func (m *MockPlatform) EnsureCredential() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return failure(CodeInvalidToken, "Not connected to TikTok")
	}
	return success()
}

// Disconnect drops the mock session so credential failures can be rehearsed.
func (m *MockPlatform) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockPlatform) ValidateMusic(musicID string) Result {
	if auth := m.EnsureCredential(); !auth.OK {
		return auth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roll(m.failureRate) {
		return failure(CodeInvalidToken, "Access token has expired")
	}

	musicID = strings.TrimSpace(musicID)
	_, known := m.catalogue[musicID]
	if known || strings.HasPrefix(musicID, "UPLOAD_") {
		return Result{OK: true, Music: &MusicInfo{
			MusicID:  musicID,
			Title:    "Sample Track " + musicID,
			Artist:   "Mock Artist",
			Duration: 30,
		}}
	}
	return failure(CodeMusicNotFound, fmt.Sprintf("Music ID '%s' does not exist or has been removed", musicID))
}

func (m *MockPlatform) UploadMusic(source string) Result {
	if auth := m.EnsureCredential(); !auth.OK {
		return auth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roll(m.failureRate) {
		return failure(CodeGeoRestricted, "Music upload is not available in your region")
	}

	musicID := "UPLOAD_" + strings.ToUpper(uuid.NewString()[:8])
	m.uploaded[musicID] = source
	m.catalogue[musicID] = struct{}{}

	title := path.Base(strings.ReplaceAll(strings.TrimSpace(source), "\\", "/"))
	if title == "" || title == "." || title == "/" {
		title = "upload"
	}
	return Result{OK: true, Music: &MusicInfo{
		MusicID:  musicID,
		Title:    title,
		Duration: 30,
		Status:   "ready",
	}}
}

func (m *MockPlatform) SubmitAd(cfg models.AdConfig) Result {
	if auth := m.EnsureCredential(); !auth.OK {
		return auth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Failure mix scaled by the configured rate: at the default 0.1 this
	// yields 5% token, 3% permission, 2% licensing errors.
	if m.simulateFailures {
		r := m.rng.Float64()
		switch {
		case r < m.failureRate*0.5:
			return failure(CodeInvalidToken, "Access token has expired")
		case r < m.failureRate*0.8:
			return failure(CodeInsufficientPermissions, "Missing ads management permission")
		case r < m.failureRate:
			return failure(CodeInvalidMusicID, "Music cannot be used for ads due to licensing")
		}
	}

	return Result{OK: true, Ad: &AdReceipt{
		AdID:         "AD_" + strings.ToUpper(uuid.NewString()[:8]),
		CampaignID:   "CAMP_" + strings.ToUpper(uuid.NewString()[:8]),
		Status:       "pending_review",
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		CampaignName: models.StrVal(cfg.CampaignName),
		Objective:    models.StrVal(cfg.Objective),
	}}
}

func (m *MockPlatform) AuthURL() (string, error) {
	return "mock://authorize?code=mock_code", nil
}

func (m *MockPlatform) VerifyState(state string) bool {
	return true
}

func (m *MockPlatform) ExchangeCode(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}
