package node

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/dispatch"
	"github.com/nerrad567/gray-logic-node/internal/network"
)

// Commands accepted on the node command topic.
const (
	CommandSendState = "state"
)

// Messenger is the part of dispatch.Dispatcher the state reporter uses.
type Messenger interface {
	Handle(topic string, h dispatch.Handler)
	Subscribe(topic string, qos ...byte) error
	PublishDocument(topic string, doc dispatch.Document, retained bool) error
}

// StatusSource reports the supervisor status.
type StatusSource interface {
	Status() connectivity.Status
}

// InfoSource reports the device's network facts.
type InfoSource interface {
	Info() network.DeviceInfo
}

// StateReporterConfig configures a StateReporter.
type StateReporterConfig struct {
	Name    string
	Version string

	StateTopic   string
	TimeTopic    string
	CommandTopic string

	Interval time.Duration
}

// StateReporter publishes the retained node state document.
//
// The system clock on a field node is not trusted, so the document carries
// the last time string received on the time topic and nothing is published
// until one has arrived.
type StateReporter struct {
	cfg       StateReporterConfig
	messenger Messenger
	status    StatusSource
	info      InfoSource
	logger    Logger
	now       func() time.Time
	startedAt time.Time

	mu          sync.Mutex
	subscribed  bool
	lastTime    string
	nextPublish time.Time
}

// NewStateReporter creates a reporter and registers its topic handlers.
// Subscriptions are made on the first poll with a live connection.
func NewStateReporter(cfg StateReporterConfig, m Messenger, status StatusSource, info InfoSource, logger Logger) *StateReporter {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &StateReporter{
		cfg:       cfg,
		messenger: m,
		status:    status,
		info:      info,
		logger:    logger,
		now:       time.Now,
	}
	r.startedAt = r.now()

	m.Handle(cfg.TimeTopic, r.onTime)
	if cfg.CommandTopic != "" {
		m.Handle(cfg.CommandTopic, r.onCommand)
	}
	return r
}

// LastTime returns the most recent time string received.
func (r *StateReporter) LastTime() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTime
}

func (r *StateReporter) onTime(msg dispatch.ParsedPayload) {
	t, ok := msg.PlainText()
	if !ok {
		t = msg.String("time")
	}
	if t == "" {
		return
	}
	r.mu.Lock()
	r.lastTime = t
	r.mu.Unlock()
}

func (r *StateReporter) onCommand(msg dispatch.ParsedPayload) {
	cmd, ok := msg.PlainText()
	if !ok {
		cmd = msg.String("command")
	}
	if cmd == CommandSendState {
		r.mu.Lock()
		r.nextPublish = time.Time{}
		r.mu.Unlock()
	}
}

// Poll implements Duty.
func (r *StateReporter) Poll(_ context.Context) {
	st := r.status.Status()
	if st.State != connectivity.StateConnected {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.subscribed {
		r.subscribed = r.subscribe()
	}

	now := r.now()
	if r.lastTime == "" || now.Before(r.nextPublish) {
		return
	}

	doc := r.document(st, now)
	if err := r.messenger.PublishDocument(r.cfg.StateTopic, doc, true); err != nil {
		r.logger.Warn("state publish failed", "topic", r.cfg.StateTopic, "error", err)
	}
	r.nextPublish = now.Add(r.cfg.Interval)
}

func (r *StateReporter) subscribe() bool {
	topics := []string{r.cfg.TimeTopic}
	if r.cfg.CommandTopic != "" {
		topics = append(topics, r.cfg.CommandTopic)
	}
	for _, topic := range topics {
		if err := r.messenger.Subscribe(topic); err != nil {
			r.logger.Warn("state reporter subscribe failed", "topic", topic, "error", err)
			return false
		}
	}
	return true
}

func (r *StateReporter) document(st connectivity.Status, now time.Time) dispatch.Document {
	var info network.DeviceInfo
	if r.info != nil {
		info = r.info.Info()
	}

	doc := dispatch.Document{
		"Whoami":   r.cfg.Name,
		"IP":       info.IP,
		"MAC":      info.MAC,
		"ver":      r.cfg.Version,
		"time":     r.lastTime,
		"uptime_s": int64(now.Sub(r.startedAt).Seconds()),
		"state":    st.State.String(),
		"attempts": st.Attempts,
	}
	if info.HasSignal {
		doc["wifi"] = info.Quality()
	} else {
		doc["wifi"] = nil
	}
	return doc
}
