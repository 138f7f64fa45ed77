// Package bus optionally broadcasts committed transcripts over NATS so
// downstream consumers (indexers, note takers) can react without
// holding the WebSocket themselves.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/voicemark/sidecar/internal/config"
)

// SubjectTranscriptFinal carries every committed transcript line.
const SubjectTranscriptFinal = "voicemark.transcript.final"

// TranscriptEvent is the bus payload for one committed line.
type TranscriptEvent struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Segments  int       `json:"segments"`
	Timestamp time.Time `json:"timestamp"`
}

// Client wraps a NATS connection with transcript publishing helpers.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("voicemark-sidecar"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// PublishFinal broadcasts a committed transcript. Failures are logged,
// not returned: the client-facing response path does not depend on the
// bus.
func (c *Client) PublishFinal(evt TranscriptEvent) {
	if c == nil {
		return
	}
	if evt.Text == "" {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		c.log.Warn("failed to marshal transcript event", slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(SubjectTranscriptFinal, data); err != nil {
		c.log.Warn("failed to publish transcript event", slog.String("error", err.Error()))
	}
}
