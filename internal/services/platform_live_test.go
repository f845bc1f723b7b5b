package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktok-ads-agent/internal/models"
)

func writeTokenFile(t *testing.T, dir string, expiresAt time.Time) string {
	t.Helper()
	path := filepath.Join(dir, "tiktok_token.json")
	b, err := json.Marshal(tokenFile{
		AccessToken:  "tok-current",
		RefreshToken: "refresh-current",
		Scope:        requiredScopes,
		ExpiresAt:    float64(expiresAt.Unix()),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func newTestLive(t *testing.T, serverURL, tokenPath string) *LivePlatform {
	t.Helper()
	p := NewLivePlatform("app-id", "app-secret", "http://localhost:8000/callback",
		"adv-1", tokenPath, filepath.Join(t.TempDir(), "oauth_state.json"), nil)
	p.BaseURL = serverURL
	return p
}

func platformJSON(w http.ResponseWriter, code int, message string, data any) {
	b, _ := json.Marshal(map[string]any{"code": code, "message": message, "data": data})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func TestLiveSubmitRetriesOnceOnCredentialRejection(t *testing.T) {
	refreshes := 0
	submits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/refresh_token/":
			refreshes++
			platformJSON(w, 0, "", map[string]any{
				"access_token": "tok-refreshed", "refresh_token": "refresh-2", "expires_in": 86400,
			})
		case "/ad/create/":
			submits++
			if r.Header.Get("Access-Token") == "tok-current" {
				platformJSON(w, 401, "Access token invalid", nil)
				return
			}
			platformJSON(w, 0, "", map[string]any{
				"ad_id": "AD_1", "campaign_id": "CAMP_1", "status": "pending_review",
			})
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	tokenPath := writeTokenFile(t, dir, time.Now().Add(2*time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	cfg := completeConfig(models.ObjectiveTraffic)
	res := p.SubmitAd(cfg)
	require.True(t, res.OK, "message=%s", res.Message)
	assert.Equal(t, "AD_1", res.Ad.AdID)
	assert.Equal(t, "Summer Sale 2026", res.Ad.CampaignName)
	assert.Equal(t, 1, refreshes, "exactly one refresh attempt")
	assert.Equal(t, 2, submits)
}

func TestLiveSubmitRetriesOnAnyInvalidTokenCode(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/refresh_token/":
			refreshes++
			platformJSON(w, 0, "", map[string]any{
				"access_token": "tok-refreshed", "refresh_token": "refresh-2", "expires_in": 86400,
			})
		case "/ad/create/":
			if r.Header.Get("Access-Token") == "tok-current" {
				// The platform's long-form invalid-token code, not a bare 401.
				platformJSON(w, 40001, "Access token invalid", nil)
				return
			}
			platformJSON(w, 0, "", map[string]any{"ad_id": "AD_2", "status": "pending_review"})
		}
	}))
	defer srv.Close()

	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(2*time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.SubmitAd(completeConfig(models.ObjectiveTraffic))
	require.True(t, res.OK, "message=%s", res.Message)
	assert.Equal(t, "AD_2", res.Ad.AdID)
	assert.Equal(t, 1, refreshes)
}

func TestLiveSubmitSurfacesSecondRejection(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/refresh_token/":
			refreshes++
			platformJSON(w, 0, "", map[string]any{"access_token": "tok-refreshed", "expires_in": 86400})
		case "/ad/create/":
			platformJSON(w, 401, "Access token invalid", nil)
		}
	}))
	defer srv.Close()

	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(2*time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.SubmitAd(completeConfig(models.ObjectiveTraffic))
	require.False(t, res.OK)
	assert.Equal(t, CodeInvalidToken, res.Code)
	assert.Equal(t, 1, refreshes, "never loops beyond one refresh")
}

func TestLiveEnsureCredentialExpiryBuffer(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/refresh_token/" {
			t.Errorf("unexpected call to %s", r.URL.Path)
			return
		}
		refreshes++
		platformJSON(w, 0, "", map[string]any{"access_token": "tok-new", "refresh_token": "refresh-2", "expires_in": 86400})
	}))
	defer srv.Close()

	// Token nominally valid for 2 more minutes, inside the 5-minute buffer.
	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(2*time.Minute))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.EnsureCredential()
	require.True(t, res.OK)
	assert.Equal(t, 1, refreshes)

	// Second call is now a pure pre-check: no further refresh.
	res = p.EnsureCredential()
	require.True(t, res.OK)
	assert.Equal(t, 1, refreshes)
}

func TestLiveEnsureCredentialRereadsTokenFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no network call expected, got %s", r.URL.Path)
	}))
	defer srv.Close()

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "tiktok_token.json")
	p := newTestLive(t, srv.URL, tokenPath)

	// No token yet and nothing to refresh with.
	res := p.EnsureCredential()
	require.False(t, res.OK)
	assert.Equal(t, CodeInvalidToken, res.Code)

	// The callback listener writes the file out of band; the next ensure
	// picks it up without any refresh.
	writeTokenFile(t, dir, time.Now().Add(2*time.Hour))
	res = p.EnsureCredential()
	assert.True(t, res.OK)
}

func TestLiveValidateMusicPropagatesCredentialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/refresh_token/" {
			platformJSON(w, 40003, "invalid refresh token", nil)
			return
		}
		t.Errorf("music call should not happen without a credential")
	}))
	defer srv.Close()

	// Expired token whose refresh is also rejected upstream.
	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(-time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.ValidateMusic("12345")
	require.False(t, res.OK)
	assert.Equal(t, CodeInvalidToken, res.Code)
	assert.Contains(t, res.Message, "reconnect")
}

func TestLiveValidateMusicSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/file/music/get/", r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("music_id"))
		assert.Equal(t, "adv-1", r.URL.Query().Get("advertiser_id"))
		assert.Equal(t, "tok-current", r.Header.Get("Access-Token"))
		platformJSON(w, 0, "", map[string]any{"title": "Neon Nights", "artist": "Synthwave Co", "duration": 45})
	}))
	defer srv.Close()

	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(2*time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.ValidateMusic("12345")
	require.True(t, res.OK)
	assert.Equal(t, "Neon Nights", res.Music.Title)
	assert.Equal(t, "Synthwave Co", res.Music.Artist)
	assert.Equal(t, 45, res.Music.Duration)
}

func TestLiveValidateMusicMapsUnknownCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platformJSON(w, 51234, "music missing", nil)
	}))
	defer srv.Close()

	tokenPath := writeTokenFile(t, t.TempDir(), time.Now().Add(2*time.Hour))
	p := newTestLive(t, srv.URL, tokenPath)

	res := p.ValidateMusic("zzz")
	require.False(t, res.OK)
	assert.Equal(t, "51234", res.Code)
	// Unknown codes land on the classifier default row, which keeps them.
	assert.Contains(t, Classify(res.Code).Explanation, "51234")
}

func TestLiveExchangeCodePersistsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/access_token/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the-code", body["auth_code"])
		platformJSON(w, 0, "", map[string]any{
			"access_token":  "tok-exchanged",
			"refresh_token": "refresh-exchanged",
			"scope":         "ads_management, creative_management",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "tiktok_token.json")
	p := newTestLive(t, srv.URL, tokenPath)

	require.NoError(t, p.ExchangeCode("the-code"))

	b, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	var saved tokenFile
	require.NoError(t, json.Unmarshal(b, &saved))
	assert.Equal(t, "tok-exchanged", saved.AccessToken)
	assert.Equal(t, "refresh-exchanged", saved.RefreshToken)
	assert.Equal(t, requiredScopes, saved.Scope)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), saved.ExpiresAt, 5)
}

func TestLiveExchangeCodeRejectsMissingScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platformJSON(w, 0, "", map[string]any{
			"access_token": "tok", "scope": []string{"ads_management"}, "expires_in": 3600,
		})
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "tiktok_token.json")
	p := newTestLive(t, srv.URL, tokenPath)

	err := p.ExchangeCode("the-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creative_management")
}

func TestLiveAuthURLRoundTripsState(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "tiktok_token.json")
	p := newTestLive(t, "http://unused", tokenPath)

	raw, err := p.AuthURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "app-id", q.Get("client_key"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "ads_management,creative_management", q.Get("scope"))
	assert.Equal(t, "http://localhost:8000/callback", q.Get("redirect_uri"))

	state := q.Get("state")
	require.NotEmpty(t, state)
	assert.True(t, p.VerifyState(state))
	assert.False(t, p.VerifyState("forged"))
	assert.False(t, p.VerifyState(""))
}
