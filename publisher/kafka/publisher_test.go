package kafka

import (
	"testing"

	"github.com/velmie/withdrawal-service/outbox"
)

func TestBuildMessageDefaultsTopicToEventType(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"})
	t.Cleanup(func() { _ = p.Close() })

	msg := p.buildMessage(outbox.Message{
		EventType: "banking.withdrawal.performed.v1",
		Payload:   []byte(`{"n":1}`),
		Subject:   "Withdrawal Performed",
		Attributes: map[string]string{
			"AccountId": "abc",
		},
	})

	if msg.Topic != "banking.withdrawal.performed.v1" {
		t.Fatalf("topic: %q", msg.Topic)
	}
	if string(msg.Value) != `{"n":1}` {
		t.Fatalf("value: %q", msg.Value)
	}
	if msg.Key != nil {
		t.Fatalf("unkeyed by default, got key %q", msg.Key)
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["Subject"] != "Withdrawal Performed" {
		t.Fatalf("subject header: %q", headers["Subject"])
	}
	if headers["AccountId"] != "abc" {
		t.Fatalf("attribute header: %q", headers["AccountId"])
	}
}

func TestBuildMessageFixedTopicAndKey(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"},
		WithTopic("banking-events"),
		WithKeyAttribute("AccountId"),
	)
	t.Cleanup(func() { _ = p.Close() })

	msg := p.buildMessage(outbox.Message{
		EventType:  "banking.withdrawal.performed.v1",
		Payload:    []byte(`{}`),
		Attributes: map[string]string{"AccountId": "abc"},
	})

	if msg.Topic != "banking-events" {
		t.Fatalf("topic: %q", msg.Topic)
	}
	if string(msg.Key) != "abc" {
		t.Fatalf("key: %q", msg.Key)
	}
}
