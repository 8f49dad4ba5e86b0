package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/shopcore/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "orders", "projects/proj/topics/orders"},
		{"proj", " orders ", "projects/proj/topics/orders"},
		{"proj", "projects/other/topics/orders", "projects/other/topics/orders"},
		{"", "orders", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := TopicNames(config.PubSubConfig{
		OrdersTopic:    "events",
		PaymentsTopic:  "events",
		InventoryTopic: "inventory",
	})
	if len(names) != 2 || names[0] != "events" || names[1] != "inventory" {
		t.Fatalf("unexpected topics %v", names)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{OrdersTopic: " "}, nil); err != errNoTopics {
		t.Fatalf("expected errNoTopics, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatalf("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
}
