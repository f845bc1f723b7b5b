package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktok-ads-agent/internal/models"
)

func TestMergeDeltaOverwritesPresentFields(t *testing.T) {
	st := &conversationState{}
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("First"), Objective: models.StrPtr(models.ObjectiveTraffic)})
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("Second")})

	cfg := st.snapshot()
	assert.Equal(t, "Second", models.StrVal(cfg.CampaignName))
	assert.Equal(t, models.ObjectiveTraffic, models.StrVal(cfg.Objective))
}

func TestMergeDeltaNilFieldsAreNoOps(t *testing.T) {
	st := &conversationState{}
	st.mergeDelta(models.AdConfig{MusicID: models.StrPtr("X")})
	st.mergeDelta(models.AdConfig{MusicID: nil, AdText: models.StrPtr("hello")})

	cfg := st.snapshot()
	assert.Equal(t, "X", models.StrVal(cfg.MusicID))
	assert.Equal(t, "hello", models.StrVal(cfg.AdText))
}

func TestMergeDeltaTrimsCampaignName(t *testing.T) {
	st := &conversationState{}
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("  Abc  ")})
	assert.Equal(t, "Abc", models.StrVal(st.snapshot().CampaignName))
}

func TestSnapshotIsIsolated(t *testing.T) {
	st := &conversationState{}
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("Original")})

	cfg := st.snapshot()
	require.NotNil(t, cfg.CampaignName)
	*cfg.CampaignName = "Mutated"

	assert.Equal(t, "Original", models.StrVal(st.snapshot().CampaignName))
}

func TestResetClearsHistoryAndConfig(t *testing.T) {
	st := &conversationState{}
	st.appendTurn("user", "hi")
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("Gone")})

	st.reset()
	assert.Empty(t, st.history)
	assert.Nil(t, st.snapshot().CampaignName)
}

func TestSummaryShowsCompletion(t *testing.T) {
	st := &conversationState{}
	st.mergeDelta(models.AdConfig{CampaignName: models.StrPtr("Summer"), CTA: models.StrPtr("Shop Now")})

	s := st.summary()
	assert.Contains(t, s, "Campaign name: Summer")
	assert.Contains(t, s, "Objective: not set")
	assert.Contains(t, s, "Completion: 2/5 fields")
}
