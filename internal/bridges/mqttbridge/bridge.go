package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/audit"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/mqtt"
)

const (
	// writeTimeout bounds the handling of one write request.
	writeTimeout = 10 * time.Second

	defaultQueueSize = 256
	unknownSerial    = "unknown"
)

// MQTTClient is the part of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Accessory is the part of *accessory.Accessory the bridge uses.
type Accessory interface {
	Characteristics() []*accessory.Characteristic
	Characteristic(id string) (*accessory.Characteristic, bool)
	Subscribe(fn accessory.Listener) (unsubscribe func())
	RequestWrite(ctx context.Context, id string, raw any) error
}

// Auditor records client writes. *audit.SQLiteRepository satisfies it.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Options configures a Bridge.
type Options struct {
	MQTT      MQTTClient
	Accessory Accessory
	Topics    mqtt.Topics

	// Serial names the inverter in every topic. Empty means "unknown".
	Serial string
	QoS    byte

	// Stats feeds the health report. Optional.
	Stats          StatsSource
	HealthInterval time.Duration
	// StaleAfter marks the bridge degraded when no refresh has finished for
	// this long. Zero disables the check.
	StaleAfter time.Duration
	Version    string

	// QueueSize bounds the changes waiting to be published.
	QueueSize int
	// Audit records every write request. Optional.
	Audit  Auditor
	Logger *logging.Logger
}

// Metrics counts bridge activity.
type Metrics struct {
	StatesPublished uint64 `json:"states_published"`
	StatesSkipped   uint64 `json:"states_skipped"`
	StatesDropped   uint64 `json:"states_dropped"`
	PublishErrors   uint64 `json:"publish_errors"`
	WritesReceived  uint64 `json:"writes_received"`
	WritesRejected  uint64 `json:"writes_rejected"`
}

// Bridge mirrors the accessory onto MQTT: every readable characteristic has
// a retained state topic, every writable one a set topic whose messages
// become accessory write requests.
//
// All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	accessory Accessory
	topics    mqtt.Topics
	serial    string
	qos       byte
	health    *HealthReporter
	audit     Auditor
	logger    *logging.Logger

	queue       chan accessory.Change
	unsubscribe func()

	// Last value published per characteristic, for change detection.
	stateCache   map[string]any
	stateCacheMu sync.Mutex

	statesPublished atomic.Uint64
	statesSkipped   atomic.Uint64
	statesDropped   atomic.Uint64
	publishErrors   atomic.Uint64
	writesReceived  atomic.Uint64
	writesRejected  atomic.Uint64

	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	now func() time.Time
}

// New validates opts and returns a bridge. Call Start to begin.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("mqttbridge: MQTT client is required")
	}
	if opts.Accessory == nil {
		return nil, errors.New("mqttbridge: accessory is required")
	}
	if opts.QoS > 2 {
		return nil, mqtt.ErrInvalidQoS
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	serial := opts.Serial
	if serial == "" {
		serial = unknownSerial
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "mqttbridge", "serial", serial)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		mqtt:       opts.MQTT,
		accessory:  opts.Accessory,
		topics:     opts.Topics,
		serial:     serial,
		qos:        opts.QoS,
		audit:      opts.Audit,
		logger:     logger,
		queue:      make(chan accessory.Change, queueSize),
		stateCache: make(map[string]any),
		ctx:        ctx,
		ctxCancel:  cancel,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:      opts.Topics.Health(),
		Serial:     serial,
		Version:    opts.Version,
		Interval:   opts.HealthInterval,
		StaleAfter: opts.StaleAfter,
		Publisher:  opts.MQTT,
		Stats:      opts.Stats,
		Logger:     logger,
	})
	return b, nil
}

// Start subscribes to write requests, publishes every current value and
// begins forwarding changes.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() { err = b.start(ctx) })
	return err
}

func (b *Bridge) start(ctx context.Context) error {
	setTopic := b.topics.SetWildcard(b.serial)
	if err := b.mqtt.Subscribe(setTopic, b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribe to write requests: %w", err)
	}
	b.logger.Info("subscribed to write requests", "topic", setTopic)

	// Subscribe before the initial publish so no change falls in between.
	b.unsubscribe = b.accessory.Subscribe(b.enqueue)

	published := 0
	for _, c := range b.accessory.Characteristics() {
		if !c.Definition().Perms.Has(accessory.PermRead) {
			continue
		}
		if b.publishState(c, c.Value(), b.now()) {
			published++
		}
	}

	b.wg.Add(1)
	go b.publishLoop()

	b.health.Start(ctx)

	b.logger.Info("MQTT bridge started", "characteristics", published)
	return nil
}

// Stop stops forwarding changes and write requests and publishes a final
// health status. Queued changes that were not yet published are discarded.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()

		if err := b.mqtt.Unsubscribe(b.topics.SetWildcard(b.serial)); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("unsubscribe failed", "error", err)
		}
		b.logger.Info("MQTT bridge stopped")
	})
}

// enqueue runs on the accessory's updating goroutine and must not block.
func (b *Bridge) enqueue(change accessory.Change) {
	select {
	case b.queue <- change:
	default:
		b.statesDropped.Add(1)
		b.logger.Warn("state queue full, change not published",
			"characteristic", change.CharacteristicID)
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case change := <-b.queue:
			c, ok := b.accessory.Characteristic(change.CharacteristicID)
			if !ok || !c.Definition().Perms.Has(accessory.PermRead) {
				continue
			}
			b.publishState(c, change.New, change.At)
		}
	}
}

// publishState publishes value unless it equals the last published value.
// It reports whether a message was sent.
func (b *Bridge) publishState(c *accessory.Characteristic, value any, at time.Time) bool {
	def := c.Definition()
	if b.stateUnchanged(def.ID, value) {
		b.statesSkipped.Add(1)
		return false
	}

	payload, err := json.Marshal(StateMessage{
		Characteristic: def.ID,
		Service:        c.Service().ID,
		Value:          value,
		Unit:           def.Unit,
		Format:         def.Format,
		Timestamp:      at.UTC(),
	})
	if err != nil {
		b.logger.Error("encoding state failed", "characteristic", def.ID, "error", err)
		return false
	}

	if err := b.mqtt.Publish(b.topics.State(b.serial, def.ID), payload, b.qos, true); err != nil {
		b.publishErrors.Add(1)
		b.forgetState(def.ID)
		b.logger.Warn("publishing state failed", "characteristic", def.ID, "error", err)
		return false
	}
	b.statesPublished.Add(1)
	return true
}

func (b *Bridge) stateUnchanged(id string, value any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if prev, ok := b.stateCache[id]; ok && reflect.DeepEqual(prev, value) {
		return true
	}
	b.stateCache[id] = value
	return false
}

func (b *Bridge) forgetState(id string) {
	b.stateCacheMu.Lock()
	delete(b.stateCache, id)
	b.stateCacheMu.Unlock()
}

// ClearStateCache forces the next change of every characteristic to be
// published, e.g. after the broker lost its retained messages.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	b.stateCache = make(map[string]any)
	b.stateCacheMu.Unlock()
}

// handleSet turns a message on a set topic into an accessory write request
// and answers on the ack topic.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	serial, id, ok := b.topics.ParseSet(topic)
	if !ok || serial != b.serial {
		return fmt.Errorf("unexpected write topic %q", topic)
	}
	b.writesReceived.Add(1)

	value := decodeSetPayload(payload)
	b.logger.Debug("write requested", "characteristic", id, "value", value)

	ctx, cancel := context.WithTimeout(b.ctx, writeTimeout)
	defer cancel()

	err := b.accessory.RequestWrite(ctx, id, value)
	ack := AckMessage{Characteristic: id, Status: AckAccepted, Timestamp: b.now().UTC()}
	if err != nil {
		b.writesRejected.Add(1)
		ack.Status = AckRejected
		ack.Error = err.Error()
		b.logger.Warn("write rejected", "characteristic", id, "error", err)
	}
	if b.audit != nil {
		entry := audit.NewEntry(audit.ActionWrite, id, audit.SourceMQTT, err)
		entry.Details = map[string]any{"value": value, "topic": topic}
		if auditErr := b.audit.Record(b.ctx, entry); auditErr != nil {
			b.logger.Warn("recording audit entry failed", "characteristic", id, "error", auditErr)
		}
	}
	b.publishAck(id, ack)
	return nil
}

func (b *Bridge) publishAck(id string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(b.serial, id), payload, b.qos, false); err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("publishing ack failed", "characteristic", id, "error", err)
	}
}

// PublishEvent publishes a non-retained event.
func (b *Bridge) PublishEvent(name string, data map[string]any) {
	payload, err := json.Marshal(EventMessage{Event: name, Data: data, Timestamp: b.now().UTC()})
	if err != nil {
		b.logger.Error("encoding event failed", "event", name, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Event(name), payload, b.qos, false); err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("publishing event failed", "event", name, "error", err)
	}
}

// HandleIdentify publishes an identify event.
func (b *Bridge) HandleIdentify(name string) {
	b.PublishEvent("identify", map[string]any{"accessory": name})
}

// SetPaired publishes a pairing event. It matches the pairing state
// listener signature.
func (b *Bridge) SetPaired(paired bool) {
	b.PublishEvent("pairing", map[string]any{"paired": paired})
}

// Metrics returns the bridge counters.
func (b *Bridge) Metrics() Metrics {
	return Metrics{
		StatesPublished: b.statesPublished.Load(),
		StatesSkipped:   b.statesSkipped.Load(),
		StatesDropped:   b.statesDropped.Load(),
		PublishErrors:   b.publishErrors.Load(),
		WritesReceived:  b.writesReceived.Load(),
		WritesRejected:  b.writesRejected.Load(),
	}
}

// Connected reports the MQTT connection state.
func (b *Bridge) Connected() bool { return b.mqtt.IsConnected() }
