package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
)

// testConfig targets a local Mosquitto at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled:     true,
		TopicPrefix: "solarbridge-test",
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "solarbridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local broker")
	}
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	c, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func TestTopics(t *testing.T) {
	topics := NewTopics("")
	tests := []struct {
		got, want string
	}{
		{topics.Status(), "solarbridge/status"},
		{topics.Health(), "solarbridge/health"},
		{topics.State("9293", "battery_level"), "solarbridge/state/9293/battery_level"},
		{topics.Set("9293", "flag_buzzer"), "solarbridge/set/9293/flag_buzzer"},
		{topics.SetWildcard("9293"), "solarbridge/set/9293/+"},
		{topics.Ack("9293", "flag_buzzer"), "solarbridge/ack/9293/flag_buzzer"},
		{topics.Event("identify"), "solarbridge/event/identify"},
		{topics.All(), "solarbridge/#"},
		{NewTopics("/home/solar/").Status(), "home/solar/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopics_ParseSet(t *testing.T) {
	topics := NewTopics("solarbridge")
	tests := []struct {
		topic      string
		serial, id string
		ok         bool
	}{
		{"solarbridge/set/9293/flag_buzzer", "9293", "flag_buzzer", true},
		{"solarbridge/state/9293/flag_buzzer", "", "", false},
		{"solarbridge/set/9293", "", "", false},
		{"solarbridge/set/9293/", "", "", false},
		{"solarbridge/set/9293/a/b", "", "", false},
		{"other/set/9293/flag_buzzer", "", "", false},
	}
	for _, tt := range tests {
		serial, id, ok := topics.ParseSet(tt.topic)
		if serial != tt.serial || id != tt.id || ok != tt.ok {
			t.Errorf("ParseSet(%q) = %q, %q, %v", tt.topic, serial, id, ok)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	b := config.MQTTBrokerConfig{Host: "broker.lan", Port: 1883}
	if got := brokerURL(b); got != "tcp://broker.lan:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	b.TLS, b.Port = true, 8883
	if got := brokerURL(b); got != "ssl://broker.lan:8883" {
		t.Errorf("brokerURL(TLS) = %q", got)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := clientOptions(cfg, NewTopics(cfg.TopicPrefix))
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "solarbridge-test" || opts.Username != "bridge" {
		t.Errorf("ClientID/Username = %q/%q", opts.ClientID, opts.Username)
	}
	if opts.TLSConfig == nil || !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Error("TLS or reconnect settings not applied")
	}

	if !opts.WillEnabled || opts.WillTopic != "solarbridge-test/status" || !opts.WillRetained {
		t.Errorf("LWT = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var will StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatal(err)
	}
	if will.Status != StatusOffline || will.Reason != ReasonLost || will.ClientID != "solarbridge-test" {
		t.Errorf("will = %+v", will)
	}
}

func TestPublishSubscribe_Validation(t *testing.T) {
	c := &Client{cfg: testConfig(), qos: 1, subs: make(map[string]subscription)}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"bad qos", c.Publish("a", nil, 3, false), ErrInvalidQoS},
		{"too large", c.Publish("a", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"not connected", c.PublishRetained("a", []byte("x")), ErrNotConnected},
		{"subscribe empty", c.Subscribe("", 1, func(string, []byte) error { return nil }), ErrInvalidTopic},
		{"subscribe nil handler", c.Subscribe("a", 1, nil), ErrSubscribeFailed},
		{"subscribe offline", c.Subscribe("a", 1, func(string, []byte) error { return nil }), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, tt.err, tt.want)
		}
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscribe was remembered")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestDispatch(t *testing.T) {
	c := &Client{}
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "t"})
	c.dispatch(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})

	var got []byte
	c.dispatch(func(_ string, p []byte) error { got = p; return nil })(nil, fakeMessage{topic: "t", payload: []byte("ok")})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.msgs) != 2 || !strings.Contains(logger.msgs[0], "failed") || !strings.Contains(logger.msgs[1], "panicked") {
		t.Errorf("logged = %v", logger.msgs)
	}
	if string(got) != "ok" {
		t.Errorf("payload = %q", got)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	c := connectOrSkip(t, "solarbridge-test-roundtrip")

	received := make(chan []byte, 1)
	topic := c.Topics().Set("roundtrip", "flag_buzzer")
	if err := c.Subscribe(c.Topics().SetWildcard("roundtrip"), 1, func(_ string, p []byte) error {
		received <- p
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(c.Topics().SetWildcard("roundtrip")) {
		t.Error("subscription not tracked")
	}

	if err := c.Publish(topic, []byte("true"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case p := <-received:
		if string(p) != "true" {
			t.Errorf("payload = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := c.Unsubscribe(c.Topics().SetWildcard("roundtrip")); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local broker")
	}
	cfg := testConfig()
	cfg.Broker.Port = 19999
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Connect(ctx, cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v", err)
	}
}
