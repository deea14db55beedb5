package bus

import (
	"log/slog"
	"testing"
)

func TestCorrelatorDeliversMatchingReply(t *testing.T) {
	c := newCorrelator(slog.Default())

	waiter, err := c.register("s-1")
	if err != nil {
		t.Fatal(err)
	}

	if !c.resolve(VoiceReply{SessionID: "s-1", Response: "hello"}) {
		t.Fatal("resolve returned false for a registered waiter")
	}

	select {
	case reply := <-waiter:
		if reply.Response != "hello" {
			t.Errorf("Response = %q, want %q", reply.Response, "hello")
		}
	default:
		t.Fatal("no reply on waiter channel")
	}
	if c.pending() != 0 {
		t.Errorf("pending = %d after resolve, want 0", c.pending())
	}
}

func TestCorrelatorDropsUnmatchedReply(t *testing.T) {
	c := newCorrelator(slog.Default())

	if c.resolve(VoiceReply{SessionID: "ghost"}) {
		t.Error("resolve returned true with no waiter registered")
	}
}

func TestCorrelatorRejectsDuplicateWaiter(t *testing.T) {
	c := newCorrelator(slog.Default())

	if _, err := c.register("s-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.register("s-1"); err == nil {
		t.Error("duplicate waiter registered for the same session")
	}
}

func TestCorrelatorReplyAfterRemoveIsDropped(t *testing.T) {
	c := newCorrelator(slog.Default())

	waiter, err := c.register("s-1")
	if err != nil {
		t.Fatal(err)
	}
	c.remove("s-1")

	if c.resolve(VoiceReply{SessionID: "s-1"}) {
		t.Error("resolve delivered to a removed waiter")
	}
	select {
	case <-waiter:
		t.Error("removed waiter received a reply")
	default:
	}
}

func TestCorrelatorDuplicateReplyDropped(t *testing.T) {
	c := newCorrelator(slog.Default())

	if _, err := c.register("s-1"); err != nil {
		t.Fatal(err)
	}
	c.resolve(VoiceReply{SessionID: "s-1"})
	if c.resolve(VoiceReply{SessionID: "s-1"}) {
		t.Error("second reply for the same session was delivered")
	}
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.RequestTopic != DefaultRequestTopic || cfg.ResponseTopic != DefaultResponseTopic {
		t.Error("default config missing stock topics")
	}

	cfg.BrokerURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty broker_url passed validation")
	}

	cfg = DefaultConfig()
	cfg.ClientID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty client_id passed validation")
	}
}

func TestWithDefaultsFillsTopics(t *testing.T) {
	cfg := Config{BrokerURL: "mqtt://broker:1883", ClientID: "c"}
	out := cfg.withDefaults()

	if out.RequestTopic != DefaultRequestTopic {
		t.Errorf("RequestTopic = %q, want %q", out.RequestTopic, DefaultRequestTopic)
	}
	if out.ResponseTopic != DefaultResponseTopic {
		t.Errorf("ResponseTopic = %q, want %q", out.ResponseTopic, DefaultResponseTopic)
	}
	if out.StatusTopic != DefaultStatusTopic {
		t.Errorf("StatusTopic = %q, want %q", out.StatusTopic, DefaultStatusTopic)
	}
	if out.KeepAlive == 0 {
		t.Error("KeepAlive not defaulted")
	}
}

func TestSendAndAwaitRequiresConnection(t *testing.T) {
	c, err := NewClient(DefaultConfig(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.SendAndAwait(t.Context(), VoiceRequest{SessionID: "s-1"}); err == nil {
		t.Error("SendAndAwait succeeded without a connection")
	}
}
