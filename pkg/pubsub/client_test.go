package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{project: "shop", name: "orders", want: "projects/shop/topics/orders"},
		{project: "shop", name: " orders ", want: "projects/shop/topics/orders"},
		{project: "other", name: "projects/shop/topics/orders", want: "projects/shop/topics/orders"},
		{project: "", name: "orders", want: ""},
		{project: "shop", name: "", want: ""},
	}
	for _, tc := range cases {
		if got := TopicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{}, nil); err != errNoTopic {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientHelpers(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatalf("nil client must not return a publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("nil ping should fail")
	}
}

func TestOrderedRequiresClient(t *testing.T) {
	var c *Client
	if c.Ordered() {
		t.Fatalf("nil client is never ordered")
	}
	if c.OrdersPublisher() != nil {
		t.Fatalf("nil client must not return a publisher")
	}
	c = &Client{cfg: config.PubSubConfig{OrderedByKey: true}}
	if !c.Ordered() {
		t.Fatalf("expected ordered client")
	}
}
