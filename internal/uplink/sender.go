// Package uplink delivers drained deferred items to the remote collector.
package uplink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sender posts one payload per request to the collector. The drain loop owns
// ordering and retry; Sender only reports success or failure per item.
type Sender struct {
	Client *http.Client
	base   string
}

func NewSender(base string, timeout time.Duration) *Sender {
	return &Sender{
		Client: &http.Client{Timeout: timeout},
		base:   normalizeBase(base),
	}
}

func normalizeBase(base string) string {
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/")
}

func (s *Sender) Deliver(ctx context.Context, queueKey string, payload []byte) error {
	if s.base == "" || s.base == "http://" {
		return fmt.Errorf("uplink: collector not configured")
	}
	url := s.base + "/sync/" + queueKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("uplink: collector status=%d", resp.StatusCode)
	}
	return nil
}
