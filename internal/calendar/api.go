package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"zen-journal-backend/internal/models"
)

// apiClient speaks the small slice of the calendar REST API we use:
// insert and delete on one calendar.
type apiClient struct {
	baseURL    string
	calendarID string
	http       *http.Client
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventBody struct {
	Summary string    `json:"summary"`
	Start   eventTime `json:"start"`
	End     eventTime `json:"end"`
}

func (c *apiClient) eventsURL() string {
	return c.baseURL + "/calendars/" + url.PathEscape(c.calendarID) + "/events"
}

func (c *apiClient) do(ctx context.Context, token, method, u string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar api: %w", err)
	}
	return resp, nil
}

func statusErr(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: calendar api rejected the token", models.ErrAuthExpired)
	}
	return fmt.Errorf("calendar api: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

func (c *apiClient) insert(ctx context.Context, token, summary string, start, end time.Time) (string, error) {
	zone := start.Location().String()
	body := eventBody{
		Summary: summary,
		Start:   eventTime{DateTime: start.Format(time.RFC3339), TimeZone: zone},
		End:     eventTime{DateTime: end.Format(time.RFC3339), TimeZone: zone},
	}
	resp, err := c.do(ctx, token, http.MethodPost, c.eventsURL(), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", statusErr(resp)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("calendar api: decode insert: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar api: insert returned no id")
	}
	return out.ID, nil
}

// delete treats an already-missing event as deleted.
func (c *apiClient) delete(ctx context.Context, token, externalID string) error {
	resp, err := c.do(ctx, token, http.MethodDelete, c.eventsURL()+"/"+url.PathEscape(externalID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2, resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil
	}
	return statusErr(resp)
}
