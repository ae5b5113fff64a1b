package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "latchkey-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if got := opts.ClientID; got != "latchkey-test" {
		t.Errorf("ClientID = %s, want latchkey-test", got)
	}
	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %s, want tcp://localhost:1883", got)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect not enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %s, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig not set")
	}
}

func TestBuildClientOptionsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "controller"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "controller" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "latchkey-test")

	if !opts.WillEnabled {
		t.Fatal("will not enabled")
	}
	if opts.WillTopic != "latchkey/system/status" {
		t.Errorf("will topic = %s, want latchkey/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("will not retained")
	}
	payload := string(opts.WillPayload)
	for _, want := range []string{`"status":"offline"`, `"client_id":"latchkey-test"`, "unexpected_disconnect"} {
		if !strings.Contains(payload, want) {
			t.Errorf("will payload %s missing %s", payload, want)
		}
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("latchkey-test")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("latchkey-test")
	if !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got  string
		want string
	}{
		{topics.ReaderScan(), "latchkey/reader/scan"},
		{topics.CommandMode(), "latchkey/command/mode"},
		{topics.CommandMark(), "latchkey/command/mark"},
		{topics.CommandChannel(1), "latchkey/command/channel/1"},
		{topics.AllCommandChannels(), "latchkey/command/channel/+"},
		{topics.CoreAccessEvent(), "latchkey/core/event/access"},
		{topics.CoreMode(), "latchkey/core/mode"},
		{topics.CoreChannelState(0), "latchkey/core/channel/0/state"},
		{topics.CoreMark(2), "latchkey/core/mark/2"},
		{topics.CoreFeedback(), "latchkey/core/feedback"},
		{topics.IORelaySet(1), "latchkey/io/relay/1/set"},
		{topics.SystemStatus(), "latchkey/system/status"},
		{topics.AllTopics(), "latchkey/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %s, want %s", tt.got, tt.want)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("latchkey/core/mode", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("latchkey/core/mode", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestPublishAsyncValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}

	if err := c.PublishAsync("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.PublishAsync("latchkey/core/mode", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.PublishStringAsync("latchkey/core/mode", "x", 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("latchkey/reader/scan", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("latchkey/reader/scan", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscribe left tracking entry")
	}
}
