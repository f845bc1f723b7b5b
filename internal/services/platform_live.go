package services

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"tiktok-ads-agent/internal/models"
)

const defaultAPIBase = "https://business-api.tiktok.com/open_api/v1.3"

// credentialBuffer is how long before nominal expiry a token is treated as
// expired, so calls never race the real deadline.
const credentialBuffer = 5 * time.Minute

var requiredScopes = []string{"ads_management", "creative_management"}

// LivePlatform talks to the TikTok Business API. The credential lives in a
// flat JSON token file written by the OAuth callback listener and re-read
// lazily here, so the two never share in-memory state.
type LivePlatform struct {
	AppID        string
	Secret       string
	RedirectURI  string
	AdvertiserID string
	TokenFile    string
	StateFile    string
	BaseURL      string
	AuthBase     string
	HTTP         *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func NewLivePlatform(appID, secret, redirectURI, advertiserID, tokenFile, stateFile string, hc *http.Client) *LivePlatform {
	p := &LivePlatform{
		AppID:        appID,
		Secret:       secret,
		RedirectURI:  redirectURI,
		AdvertiserID: advertiserID,
		TokenFile:    tokenFile,
		StateFile:    stateFile,
		BaseURL:      defaultAPIBase,
		AuthBase:     "https://www.tiktok.com/v2/auth/authorize/",
		HTTP:         hc,
	}
	p.mu.Lock()
	p.loadTokenLocked()
	p.mu.Unlock()
	return p
}

func (p *LivePlatform) httpClient() *http.Client {
	if p.HTTP != nil {
		return p.HTTP
	}
	return http.DefaultClient
}

// Token file format: {access_token, refresh_token, scope, expires_at} with
// expires_at as unix seconds. Plaintext on disk is a documented limitation.
type tokenFile struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Scope        []string `json:"scope,omitempty"`
	ExpiresAt    float64  `json:"expires_at"`
}

func (p *LivePlatform) loadTokenLocked() {
	b, err := os.ReadFile(p.TokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			debugLogf("platform: read token file: %v", err)
		}
		return
	}
	var t tokenFile
	if err := json.Unmarshal(b, &t); err != nil {
		debugLogf("platform: parse token file: %v", err)
		return
	}
	p.accessToken = t.AccessToken
	p.refreshToken = t.RefreshToken
	p.expiresAt = time.Unix(int64(t.ExpiresAt), 0)
}

func (p *LivePlatform) saveTokenLocked(accessToken, refreshToken string, scope []string, expiresIn int64) {
	p.accessToken = accessToken
	p.refreshToken = refreshToken
	p.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)

	b, _ := json.Marshal(tokenFile{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scope:        scope,
		ExpiresAt:    float64(p.expiresAt.Unix()),
	})
	if err := os.WriteFile(p.TokenFile, b, 0o600); err != nil {
		debugLogf("platform: write token file: %v", err)
	}
}

func (p *LivePlatform) credentialValidLocked() bool {
	return p.accessToken != "" && time.Now().Before(p.expiresAt.Add(-credentialBuffer))
}

// platformResponse is the TikTok envelope: code 0 means success.
type platformResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *LivePlatform) doJSON(method, endpoint, accessToken string, query map[string]string, body any) (platformResponse, error) {
	u := strings.TrimRight(p.BaseURL, "/") + endpoint
	if len(query) > 0 {
		parsed, err := url.Parse(u)
		if err == nil {
			q := parsed.Query()
			for k, v := range query {
				q.Set(k, v)
			}
			parsed.RawQuery = q.Encode()
			u = parsed.String()
		}
	}

	var rbody io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rbody = bytes.NewReader(b)
	}

	debugLogf("platform %s %s", method, u)
	req, err := http.NewRequest(method, u, rbody)
	if err != nil {
		return platformResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Access-Token", accessToken)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		debugLogf("platform %s %s -> err=%v", method, u, err)
		return platformResponse{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	debugLogf("platform %s %s -> status=%d bytes=%d", method, u, resp.StatusCode, len(b))

	var out platformResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return platformResponse{}, fmt.Errorf("platform invalid json: %w", err)
	}
	return out, nil
}

// mapPlatformCode normalizes TikTok error codes onto the classifier's keys.
// Unrecognized codes pass through literally and land on Classify's default row.
func mapPlatformCode(code int) string {
	switch code {
	case 401, 40001:
		return CodeInvalidToken
	case 403, 40100:
		return CodeInsufficientPermissions
	case 40101:
		return CodeGeoRestricted
	}
	return strconv.Itoa(code)
}

func (p *LivePlatform) refreshLocked() bool {
	if p.refreshToken == "" {
		return false
	}
	resp, err := p.doJSON(http.MethodPost, "/oauth2/refresh_token/", "", nil, map[string]any{
		"app_id":        p.AppID,
		"secret":        p.Secret,
		"refresh_token": p.refreshToken,
		"grant_type":    "refresh_token",
	})
	if err != nil || resp.Code != 0 {
		debugLogf("platform: token refresh failed: err=%v code=%d", err, resp.Code)
		return false
	}
	var d struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		Scope        json.RawMessage `json:"scope"`
		ExpiresIn    int64           `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Data, &d); err != nil || d.AccessToken == "" {
		return false
	}
	if d.ExpiresIn <= 0 {
		d.ExpiresIn = 86400
	}
	p.saveTokenLocked(d.AccessToken, d.RefreshToken, parseScopes(d.Scope), d.ExpiresIn)
	return true
}

// EnsureCredential re-reads the token file before refreshing: the callback
// listener may have written a fresh credential out of band.
func (p *LivePlatform) EnsureCredential() Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.credentialValidLocked() {
		return success()
	}
	p.loadTokenLocked()
	if p.credentialValidLocked() {
		return success()
	}
	if p.refreshLocked() {
		return success()
	}
	return failure(CodeInvalidToken, "Session expired. Please reconnect TikTok.")
}

func (p *LivePlatform) currentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessToken
}

func (p *LivePlatform) ValidateMusic(musicID string) Result {
	if auth := p.EnsureCredential(); !auth.OK {
		return auth
	}

	resp, err := p.doJSON(http.MethodGet, "/file/music/get/", p.currentToken(), map[string]string{
		"music_id":      musicID,
		"advertiser_id": p.AdvertiserID,
	}, nil)
	if err != nil {
		return failure(CodeNetworkError, err.Error())
	}
	if resp.Code != 0 {
		return failure(mapPlatformCode(resp.Code), resp.Message)
	}

	info := MusicInfo{MusicID: musicID}
	var d struct {
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		Duration int    `json:"duration"`
	}
	if json.Unmarshal(resp.Data, &d) == nil {
		info.Title = d.Title
		info.Artist = d.Artist
		info.Duration = d.Duration
	}
	if info.Title == "" {
		info.Title = musicID
	}
	return Result{OK: true, Music: &info}
}

func (p *LivePlatform) UploadMusic(source string) Result {
	if auth := p.EnsureCredential(); !auth.OK {
		return auth
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return failure(CodeNetworkError, fmt.Sprintf("cannot read music file: %v", err))
	}
	name := filepath.Base(source)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("advertiser_id", p.AdvertiserID)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="music_file"; filename="`+name+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	if err != nil {
		return failure(CodeNetworkError, err.Error())
	}
	if _, err := part.Write(data); err != nil {
		return failure(CodeNetworkError, err.Error())
	}
	if err := mw.Close(); err != nil {
		return failure(CodeNetworkError, err.Error())
	}

	u := strings.TrimRight(p.BaseURL, "/") + "/file/music/upload/"
	debugLogf("platform POST %s (multipart %d bytes)", u, buf.Len())
	req, err := http.NewRequest(http.MethodPost, u, &buf)
	if err != nil {
		return failure(CodeNetworkError, err.Error())
	}
	req.Header.Set("Access-Token", p.currentToken())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := p.httpClient().Do(req)
	if err != nil {
		return failure(CodeNetworkError, err.Error())
	}
	defer httpResp.Body.Close()
	b, _ := io.ReadAll(httpResp.Body)

	var resp platformResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return failure(CodeNetworkError, "platform returned malformed response")
	}
	if resp.Code != 0 {
		return failure(mapPlatformCode(resp.Code), resp.Message)
	}

	var d struct {
		MusicID string `json:"music_id"`
	}
	if err := json.Unmarshal(resp.Data, &d); err != nil || d.MusicID == "" {
		return failure(CodeNetworkError, "upload response missing music_id")
	}
	return Result{OK: true, Music: &MusicInfo{MusicID: d.MusicID, Title: name, Status: "ready"}}
}

// SubmitAd applies the canonical retry policy: ensure first, then at most one
// refresh-and-retry when the platform rejects the credential mid-call.
func (p *LivePlatform) SubmitAd(cfg models.AdConfig) Result {
	if auth := p.EnsureCredential(); !auth.OK {
		return auth
	}

	payload := map[string]any{
		"advertiser_id":  p.AdvertiserID,
		"campaign_name":  models.StrVal(cfg.CampaignName),
		"objective":      models.StrVal(cfg.Objective),
		"ad_text":        models.StrVal(cfg.AdText),
		"call_to_action": models.StrVal(cfg.CTA),
	}
	if cfg.MusicID != nil {
		payload["music_id"] = *cfg.MusicID
	}

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := p.doJSON(http.MethodPost, "/ad/create/", p.currentToken(), nil, payload)
		if err != nil {
			return failure(CodeNetworkError, err.Error())
		}
		if resp.Code == 0 {
			var d struct {
				AdID       string `json:"ad_id"`
				CampaignID string `json:"campaign_id"`
				Status     string `json:"status"`
				CreatedAt  string `json:"created_at"`
			}
			_ = json.Unmarshal(resp.Data, &d)
			return Result{OK: true, Ad: &AdReceipt{
				AdID:         d.AdID,
				CampaignID:   d.CampaignID,
				Status:       d.Status,
				CreatedAt:    d.CreatedAt,
				CampaignName: models.StrVal(cfg.CampaignName),
				Objective:    models.StrVal(cfg.Objective),
			}}
		}
		if mapPlatformCode(resp.Code) == CodeInvalidToken && attempt == 0 {
			p.mu.Lock()
			refreshed := p.refreshLocked()
			p.mu.Unlock()
			if refreshed {
				continue
			}
		}
		return failure(mapPlatformCode(resp.Code), resp.Message)
	}
	return failure(CodeInvalidToken, "Max retries exceeded")
}

func (p *LivePlatform) AuthURL() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)
	if err := p.saveState(state); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client_key", p.AppID)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(requiredScopes, ","))
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("state", state)
	return p.AuthBase + "?" + q.Encode(), nil
}

func (p *LivePlatform) saveState(state string) error {
	b, _ := json.Marshal(map[string]string{"state": state})
	return os.WriteFile(p.StateFile, b, 0o600)
}

func (p *LivePlatform) VerifyState(received string) bool {
	if strings.TrimSpace(received) == "" {
		return false
	}
	b, err := os.ReadFile(p.StateFile)
	if err != nil {
		return false
	}
	var saved map[string]string
	if err := json.Unmarshal(b, &saved); err != nil {
		return false
	}
	return saved["state"] == received
}

// ExchangeCode trades an authorization code for a credential, enforcing the
// required scopes before persisting it.
func (p *LivePlatform) ExchangeCode(code string) error {
	resp, err := p.doJSON(http.MethodPost, "/oauth2/access_token/", "", nil, map[string]any{
		"app_id":    p.AppID,
		"secret":    p.Secret,
		"auth_code": code,
	})
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("token exchange failed: %s", resp.Message)
	}

	var d struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		Scope        json.RawMessage `json:"scope"`
		ExpiresIn    int64           `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Data, &d); err != nil || d.AccessToken == "" {
		return errors.New("token exchange returned no access token")
	}

	scopes := parseScopes(d.Scope)
	have := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		have[s] = struct{}{}
	}
	for _, s := range requiredScopes {
		if _, ok := have[s]; !ok {
			return fmt.Errorf("missing required scope %q (got: %s)", s, strings.Join(scopes, ","))
		}
	}

	if d.ExpiresIn <= 0 {
		d.ExpiresIn = 86400
	}
	p.mu.Lock()
	p.saveTokenLocked(d.AccessToken, d.RefreshToken, scopes, d.ExpiresIn)
	p.mu.Unlock()
	return nil
}

// parseScopes accepts both shapes TikTok returns: a JSON array of strings or
// a single comma-separated string.
func parseScopes(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}
