// Package publish forwards committed transcript text to NATS subscribers.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DefaultURL     = nats.DefaultURL
	DefaultSubject = "hyprscribe.transcript.dump"
)

// DumpEvent is the JSON payload published for every dump.
type DumpEvent struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	Words     int       `json:"words"`
	Timestamp time.Time `json:"timestamp"`
}

// ChunkEvent is published when topic chunking assigns text to a topic.
type ChunkEvent struct {
	SessionID string    `json:"session_id"`
	TopicID   string    `json:"topic_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	URL     string
	Subject string
	Timeout time.Duration
}

type Publisher struct {
	conn    *nats.Conn
	subject string
}

func Connect(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("hyprscribe"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("publish: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("publish: reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Printf("publish: connected to %s, subject=%s", cfg.URL, cfg.Subject)
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

func (p *Publisher) Subject() string { return p.subject }

// ChunkSubject is where topic chunks go, next to the dump subject.
func (p *Publisher) ChunkSubject() string { return p.subject + ".chunks" }

func (p *Publisher) PublishDump(ev DumpEvent) error {
	return p.publish(p.subject, ev)
}

func (p *Publisher) PublishChunk(ev ChunkEvent) error {
	return p.publish(p.ChunkSubject(), ev)
}

func (p *Publisher) publish(subject string, v any) error {
	if p == nil || p.conn == nil {
		return errors.New("publisher not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
