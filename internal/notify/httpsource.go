package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPSource polls the booking service's channel endpoint over HTTP. It
// implements Poller so a remote process can consume the channel the same
// way an in-process consumer does.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a poller against baseURL, which should be the
// service root (for example "http://localhost:8080").
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{baseURL: baseURL, client: client}
}

// Poll fetches the current channel state. A 204 response means nothing
// newer than sinceVersion exists and yields (nil, nil).
func (s *HTTPSource) Poll(ctx context.Context, sinceVersion int64) (*Message, error) {
	endpoint := s.baseURL + "/channel?" + url.Values{
		"since_version": []string{strconv.FormatInt(sinceVersion, 10)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build channel request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll channel: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("poll channel: unexpected status %d", resp.StatusCode)
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode channel message: %w", err)
	}
	return &msg, nil
}
