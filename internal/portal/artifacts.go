package portal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yzhou-dev/replayarc/internal/models"
)

// Video channels recorded by the portal.
const (
	ChannelCamera = 0
	ChannelScreen = 1
)

// ResolveArtifacts determines which artifacts exist for a recorded session:
// video stream, subtitle track, and summary document may each be absent.
// The three kinds are independent reads and resolve concurrently; a kind the
// portal reports as unavailable is simply absent and never fails the others.
//
// Error classification: ErrManifestParse is fatal for this session only;
// ErrAuthExpired halts the whole pipeline.
func (c *Client) ResolveArtifacts(ctx context.Context, rec models.SessionRecord) ([]models.Artifact, error) {
	token, err := c.session.CourseToken(ctx, rec.CourseID)
	if err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		byKind   = make(map[models.ArtifactKind]models.Artifact)
		firstErr error
	)

	resolve := func(kind models.ArtifactKind, fn func() (*models.Artifact, error)) {
		defer wg.Done()
		art, err := fn()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			// Unavailable means this kind does not exist yet; the other
			// kinds still count.
			if errors.Is(err, ErrArtifactUnavailable) {
				return
			}
			// Auth expiry wins over any other classification.
			if firstErr == nil || errors.Is(err, ErrAuthExpired) {
				firstErr = fmt.Errorf("resolve %s: %w", kind, err)
			}
			return
		}
		if art != nil {
			byKind[kind] = *art
		}
	}

	wg.Add(3)
	go resolve(models.KindVideo, func() (*models.Artifact, error) {
		return c.resolveVideo(ctx, token, rec)
	})
	go resolve(models.KindSubtitle, func() (*models.Artifact, error) {
		return c.resolveSubtitle(ctx, token, rec)
	})
	go resolve(models.KindSummary, func() (*models.Artifact, error) {
		return c.resolveSummary(ctx, token, rec)
	})
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	artifacts := make([]models.Artifact, 0, len(byKind))
	for _, kind := range []models.ArtifactKind{models.KindVideo, models.KindSubtitle, models.KindSummary} {
		if art, ok := byKind[kind]; ok {
			artifacts = append(artifacts, art)
		}
	}
	return artifacts, nil
}

// resolveVideo resolves the media stream for the configured channel. The
// portal records two channels per session: the classroom camera and the
// computer screen.
func (c *Client) resolveVideo(ctx context.Context, token string, rec models.SessionRecord) (*models.Artifact, error) {
	payload := map[string]interface{}{
		"id":          rec.VideoID,
		"playTypeHls": true,
	}

	var body struct {
		Code int `json:"code"`
		Data struct {
			VideoPlayResponseVoList []struct {
				CdviViewNum int    `json:"cdviViewNum"`
				URL         string `json:"rtmpUrlHdv"`
			} `json:"videoPlayResponseVoList"`
		} `json:"data"`
	}
	u := c.session.VodBase + "/vod/getVodVideoInfos"
	if err := c.fetchJSON(ctx, http.MethodPost, u, token, payload, &body); err != nil {
		return nil, err
	}
	if body.Code != 0 || len(body.Data.VideoPlayResponseVoList) == 0 {
		return nil, ErrArtifactUnavailable
	}

	wantScreen := c.Channel == ChannelScreen
	streamURL := ""
	for _, v := range body.Data.VideoPlayResponseVoList {
		isScreen := v.CdviViewNum != 0
		if isScreen == wantScreen && v.URL != "" {
			streamURL = v.URL
			break
		}
	}
	if streamURL == "" {
		return nil, ErrArtifactUnavailable
	}

	// Playback manifests hide the real media URL behind quality variants.
	if strings.HasSuffix(strippedPath(streamURL), ".m3u8") {
		manifest, err := c.fetchText(ctx, streamURL)
		if err != nil {
			return nil, err
		}
		streamURL, err = SelectStreamURL(streamURL, manifest)
		if err != nil {
			return nil, err
		}
	}

	return &models.Artifact{
		SessionID: rec.ID,
		Kind:      models.KindVideo,
		URL:       streamURL,
		ContentID: ContentID(rec.ID, models.KindVideo, streamURL),
	}, nil
}

// resolveSubtitle probes for a transcript and returns its export URL. The
// downloaded payload is transcript JSON; the coordinator renders it to SRT.
func (c *Client) resolveSubtitle(ctx context.Context, token string, rec models.SessionRecord) (*models.Artifact, error) {
	payload := map[string]interface{}{
		"courseId": rec.ID,
		"platform": 1,
	}

	var body struct {
		Code int `json:"code"`
		Data *struct {
			OriginalList []struct {
				Bg int `json:"bg"`
			} `json:"originalList"`
		} `json:"data"`
	}
	u := c.session.VodBase + "/vod/transfer/translate/detail"
	if err := c.fetchJSON(ctx, http.MethodPost, u, token, payload, &body); err != nil {
		return nil, err
	}
	if body.Code != 0 || body.Data == nil || len(body.Data.OriginalList) == 0 {
		return nil, nil
	}

	exportURL := fmt.Sprintf("%s/vod/transfer/translate/export?courseId=%d&token=%s",
		c.session.VodBase, rec.ID, url.QueryEscape(token))
	return &models.Artifact{
		SessionID: rec.ID,
		Kind:      models.KindSubtitle,
		URL:       exportURL,
		ContentID: ContentID(rec.ID, models.KindSubtitle, exportURL),
	}, nil
}

// resolveSummary probes for an AI-generated lecture summary document.
func (c *Client) resolveSummary(ctx context.Context, token string, rec models.SessionRecord) (*models.Artifact, error) {
	payload := map[string]interface{}{
		"courseId": rec.ID,
	}

	var body struct {
		Code int `json:"code"`
		Data *struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	u := c.session.VodBase + "/vod/ai/summary/detail"
	if err := c.fetchJSON(ctx, http.MethodPost, u, token, payload, &body); err != nil {
		return nil, err
	}
	if body.Code != 0 || body.Data == nil || body.Data.Content == "" {
		return nil, nil
	}

	exportURL := fmt.Sprintf("%s/vod/ai/summary/export?courseId=%d&token=%s",
		c.session.VodBase, rec.ID, url.QueryEscape(token))
	return &models.Artifact{
		SessionID: rec.ID,
		Kind:      models.KindSummary,
		URL:       exportURL,
		ContentID: ContentID(rec.ID, models.KindSummary, exportURL),
	}, nil
}

// fetchText fetches a small text resource (playback manifests) with the same
// backoff policy as JSON endpoints.
func (c *Client) fetchText(ctx context.Context, rawURL string) (string, error) {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.BackoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", err
		}
		res, err := c.session.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(res.Body)
		res.Body.Close()

		switch {
		case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
			return "", ErrAuthExpired
		case res.StatusCode >= 500:
			lastErr = fmt.Errorf("portal returned status %d", res.StatusCode)
			continue
		case res.StatusCode != http.StatusOK:
			return "", fmt.Errorf("portal returned status %d", res.StatusCode)
		case readErr != nil:
			lastErr = readErr
			continue
		}
		return string(data), nil
	}

	return "", fmt.Errorf("%w: %v", ErrTransientFetch, lastErr)
}

// ContentID derives the stable identifier for an artifact. The URL query is
// stripped first: portal URLs carry expiring signatures that must not change
// the identity of the content behind them.
func ContentID(sessionID int, kind models.ArtifactKind, rawURL string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", sessionID, kind, strippedPath(rawURL))))
	return hex.EncodeToString(h[:])
}

// strippedPath returns the URL without its query and fragment.
func strippedPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
