package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NtfyConfig describes the push endpoint. ServerURL and Topic are
// required; everything else is optional decoration.
type NtfyConfig struct {
	ServerURL string
	Topic     string
	Title     string
	Tags      string // comma-separated, passed through verbatim
	Icon      string
	Auth      string // full Authorization header value (Bearer/Basic ...)
}

// NtfySender posts one HTTP request per fired reminder to an
// ntfy-compatible server.
//
// Sends are never retried here: a failed delivery is reported once and
// the next timer is unaffected.
type NtfySender struct {
	cfg    NtfyConfig
	client *http.Client
}

func NewNtfySender(cfg NtfyConfig) (*NtfySender, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, fmt.Errorf("ntfy.server_url is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("ntfy.topic is required")
	}
	return &NtfySender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *NtfySender) Name() string { return "ntfy" }

func (s *NtfySender) endpoint() string {
	return strings.TrimRight(s.cfg.ServerURL, "/") + "/" + url.PathEscape(s.cfg.Topic)
}

func (s *NtfySender) Send(ctx context.Context, n Notification) error {
	body := strings.TrimSpace(n.Body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), strings.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("X-Title", s.cfg.Title)
	req.Header.Set("X-Tags", s.cfg.Tags)
	req.Header.Set("X-Priority", strconv.Itoa(clampPriority(n.Priority)))
	if s.cfg.Auth != "" {
		req.Header.Set("Authorization", s.cfg.Auth)
	}
	if s.cfg.Icon != "" {
		// Two header aliases for compatibility with different consumers
		// of the protocol.
		req.Header.Set("X-Icon", s.cfg.Icon)
		req.Header.Set("Icon", s.cfg.Icon)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy: unexpected status %s", resp.Status)
	}
	return nil
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}
