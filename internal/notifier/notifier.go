// Package notifier delivers reminder messages to customers over email and
// SMS gateways. Each channel is an independent sender so a failing SMS
// provider never blocks email delivery.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Gateway posts messages to an external delivery API. One Gateway instance
// serves one channel (email or SMS), pointed at that channel's endpoint.
type Gateway struct {
	url    string
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

func NewGateway(url, apiKey string, timeout time.Duration, log zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "notifier").Logger(),
	}
}

type sendRequest struct {
	Target  string `json:"target"`
	Content string `json:"content"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (g *Gateway) Send(ctx context.Context, target, content string) error {
	body, err := json.Marshal(sendRequest{Target: target, Content: content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("notifier gateway: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifier gateway: status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("notifier gateway: decoding response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("notifier gateway: delivery rejected: %s", parsed.Error)
	}
	g.log.Debug().Str("id", parsed.ID).Msg("message delivered")
	return nil
}

// LogOnly is a development sender that records messages without delivering
// anything.
type LogOnly struct {
	Channel string
	Log     zerolog.Logger
}

func (l LogOnly) Send(_ context.Context, target, content string) error {
	l.Log.Info().
		Str("channel", l.Channel).
		Str("target", target).
		Str("content", content).
		Msg("notification (log only)")
	return nil
}
