// Package portal talks to the institutional video-replay portal: it consumes
// an authenticated session, enumerates courses and recorded sessions, and
// resolves the downloadable artifacts of each session.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"
)

// Credentials identify a portal user. The concrete login flow is owned by the
// session provider; the pipeline only sees the resulting handle.
type Credentials struct {
	Username   string `json:"username"`
	CookiePath string `json:"cookie_path,omitempty"`
}

// SessionHandle is an authenticated handle capable of making portal requests.
// The portal issues one bearer token per course; the handle caches them.
type SessionHandle struct {
	CanvasBase string
	VodBase    string

	client *http.Client

	mu     sync.Mutex
	tokens map[int]string
}

// NewSessionHandle wraps an authenticated HTTP client. The client must carry
// whatever cookies the portal requires.
func NewSessionHandle(client *http.Client, canvasBase, vodBase string) *SessionHandle {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SessionHandle{
		CanvasBase: canvasBase,
		VodBase:    vodBase,
		client:     client,
		tokens:     make(map[int]string),
	}
}

// Do performs an HTTP request with the session's client.
func (h *SessionHandle) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

// CourseToken returns the replay-service bearer token for a course, fetching
// it through the portal's LTI hand-off on first use.
func (h *SessionHandle) CourseToken(ctx context.Context, courseID int) (string, error) {
	h.mu.Lock()
	if tok, ok := h.tokens[courseID]; ok {
		h.mu.Unlock()
		return tok, nil
	}
	h.mu.Unlock()

	u := fmt.Sprintf("%s/courses/%d/external_tools/replay/token", h.CanvasBase, courseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	res, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch course token: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return "", ErrAuthExpired
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch course token: unexpected status %d", res.StatusCode)
	}

	var body struct {
		Code int `json:"code"`
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode course token: %w", err)
	}
	if body.Code != 0 || body.Data.Token == "" {
		return "", ErrAuthExpired
	}

	h.mu.Lock()
	h.tokens[courseID] = body.Data.Token
	h.mu.Unlock()
	return body.Data.Token, nil
}

// SessionProvider produces authenticated session handles and owns the
// credential lifecycle.
type SessionProvider interface {
	// Authenticate logs in and returns a live handle, or ErrAuthFailure.
	Authenticate(ctx context.Context, creds Credentials) (*SessionHandle, error)

	// IsValid reports whether the handle is still accepted by the portal.
	IsValid(ctx context.Context, h *SessionHandle) bool
}

// CookieProvider authenticates by replaying a cookie jar previously saved by
// an interactive login. It validates the jar with a portal ping instead of
// running the login flow itself.
type CookieProvider struct {
	CanvasBase string
	VodBase    string
	Timeout    time.Duration
}

// cookieFile is the on-disk serialization of a saved session.
type cookieFile struct {
	SavedAt time.Time `json:"saved_at"`
	Cookies []struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Domain string `json:"domain"`
		Path   string `json:"path"`
	} `json:"cookies"`
}

// Authenticate loads the cookie jar from creds.CookiePath and verifies it.
func (p *CookieProvider) Authenticate(ctx context.Context, creds Credentials) (*SessionHandle, error) {
	data, err := os.ReadFile(creds.CookiePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read cookies: %v", ErrAuthFailure, err)
	}

	var cf cookieFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: parse cookies: %v", ErrAuthFailure, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(p.CanvasBase)
	if err != nil {
		return nil, fmt.Errorf("%w: bad portal url: %v", ErrAuthFailure, err)
	}
	cookies := make([]*http.Cookie, 0, len(cf.Cookies))
	for _, c := range cf.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	jar.SetCookies(base, cookies)

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	handle := NewSessionHandle(&http.Client{Jar: jar, Timeout: timeout}, p.CanvasBase, p.VodBase)

	if !p.IsValid(ctx, handle) {
		return nil, ErrAuthFailure
	}
	return handle, nil
}

// IsValid pings the favorites endpoint to check the session is still accepted.
func (p *CookieProvider) IsValid(ctx context.Context, h *SessionHandle) bool {
	u := h.CanvasBase + "/api/v1/users/self/favorites/courses?per_page=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	res, err := h.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}
