package publish

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestPublisher_PublishDump(t *testing.T) {
	ns := runServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 4)
	if _, err := sub.ChanSubscribe(DefaultSubject, msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p, err := Connect(Config{URL: ns.ClientURL()})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer p.Close()
	if p.Subject() != DefaultSubject {
		t.Errorf("Subject() = %q, want default", p.Subject())
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := p.PublishDump(DumpEvent{SessionID: "s1", Sequence: 1, Text: "hello world", Words: 2, Timestamp: at}); err != nil {
		t.Fatalf("PublishDump() error: %v", err)
	}

	select {
	case msg := <-msgs:
		var ev DumpEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.SessionID != "s1" || ev.Text != "hello world" || ev.Words != 2 || !ev.Timestamp.Equal(at) {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublisher_PublishChunk(t *testing.T) {
	ns := runServer(t)

	p, err := Connect(Config{URL: ns.ClientURL(), Subject: "notes.dump"})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer p.Close()

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	s, err := sub.SubscribeSync("notes.dump.chunks")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := p.PublishChunk(ChunkEvent{SessionID: "s1", TopicID: "budget", Text: "costs went up"}); err != nil {
		t.Fatalf("PublishChunk() error: %v", err)
	}
	msg, err := s.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg() error: %v", err)
	}
	var ev ChunkEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.TopicID != "budget" || ev.Text != "costs went up" {
		t.Errorf("event = %+v", ev)
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := Connect(Config{URL: "nats://127.0.0.1:1", Timeout: 200 * time.Millisecond}); err == nil {
		t.Error("Connect() to a closed port should fail")
	}
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	if err := p.PublishDump(DumpEvent{}); err == nil {
		t.Error("PublishDump() on nil publisher should fail")
	}
	p.Close()
}
