package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yzhou-dev/replayarc/internal/models"
)

const (
	defaultPageSize    = 50
	defaultMaxAttempts = 4
	defaultBackoffBase = 500 * time.Millisecond
)

// Client resolves the catalog and artifacts for an authenticated session.
// Pagination and transient-failure retry are handled internally; callers see
// complete listings or a classified error.
type Client struct {
	session *SessionHandle

	// PageSize is the page length requested from the portal.
	PageSize int
	// MaxAttempts bounds fetch retries per page before ErrTransientFetch.
	MaxAttempts int
	// BackoffBase is the first retry delay; doubled on each attempt.
	BackoffBase time.Duration
	// Channel selects which recorded video channel to resolve:
	// ChannelCamera (default) or ChannelScreen.
	Channel int
}

// NewClient creates a catalog/artifact client over the given session.
func NewClient(session *SessionHandle) *Client {
	return &Client{
		session:     session,
		PageSize:    defaultPageSize,
		MaxAttempts: defaultMaxAttempts,
		BackoffBase: defaultBackoffBase,
	}
}

// ListCourses enumerates the courses the user is entitled to, in portal order.
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course

	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/api/v1/users/self/favorites/courses?page=%d&per_page=%d",
			c.session.CanvasBase, page, c.PageSize)

		var raw []struct {
			ID        int    `json:"id"`
			Name      string `json:"name"`
			AccountID int    `json:"account_id"`
		}
		if err := c.fetchJSON(ctx, http.MethodGet, u, "", nil, &raw); err != nil {
			return nil, err
		}

		for _, item := range raw {
			courses = append(courses, models.Course{
				ID:      item.ID,
				Name:    item.Name,
				Account: item.AccountID,
			})
		}

		if len(raw) < c.PageSize {
			return courses, nil
		}
	}
}

// vodTimeLayout is the timestamp format used by the replay service.
const vodTimeLayout = "2006-01-02 15:04:05"

// ListSessions enumerates the recorded sessions of a course, in portal order.
func (c *Client) ListSessions(ctx context.Context, course models.Course) ([]models.SessionRecord, error) {
	token, err := c.session.CourseToken(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	var sessions []models.SessionRecord

	for page := 1; ; page++ {
		payload := map[string]interface{}{
			"canvasCourseId": course.ID,
			"pageIndex":      page,
			"pageSize":       c.PageSize,
		}

		var body struct {
			Code int `json:"code"`
			Data struct {
				Records []struct {
					CourID          int    `json:"courId"`
					VideoName       string `json:"videoName"`
					CourseBeginTime string `json:"courseBeginTime"`
					VideoID         string `json:"videoId"`
				} `json:"records"`
			} `json:"data"`
		}
		u := c.session.VodBase + "/vod/findVodVideoList"
		if err := c.fetchJSON(ctx, http.MethodPost, u, token, payload, &body); err != nil {
			return nil, err
		}
		if body.Code != 0 {
			// The replay service reports "no videos" as a non-zero code.
			return sessions, nil
		}

		for _, rec := range body.Data.Records {
			recordedAt, _ := time.Parse(vodTimeLayout, rec.CourseBeginTime)
			sessions = append(sessions, models.SessionRecord{
				ID:         rec.CourID,
				CourseID:   course.ID,
				Title:      rec.VideoName,
				RecordedAt: recordedAt,
				VideoID:    rec.VideoID,
			})
		}

		if len(body.Data.Records) < c.PageSize {
			return sessions, nil
		}
	}
}

// fetchJSON performs one portal request with bounded exponential backoff on
// transient failures. 401/403 surfaces ErrAuthExpired immediately.
func (c *Client) fetchJSON(ctx context.Context, method, url, token string, payload, out interface{}) error {
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
				return ctx.Err()
			}
		}

		retryable, err := c.doJSON(ctx, method, url, token, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %v", ErrTransientFetch, lastErr)
}

// doJSON performs a single request. The bool result reports whether the error
// is worth retrying.
func (c *Client) doJSON(ctx context.Context, method, url, token string, payload, out interface{}) (bool, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return false, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return false, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("token", token)
	}

	res, err := c.session.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return false, ErrAuthExpired
	case res.StatusCode >= 500:
		return true, fmt.Errorf("portal returned status %d", res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return false, fmt.Errorf("portal returned status %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
