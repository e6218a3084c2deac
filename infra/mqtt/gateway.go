package mqtt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/stbs/core/events"
	"github.com/kilianp07/stbs/core/frame"
	"github.com/kilianp07/stbs/infra/logger"
	"github.com/kilianp07/stbs/internal/eventbus"
)

// FrameProcessor turns one command frame into its reply frame.
type FrameProcessor interface {
	Process(raw []byte) []byte
}

// StatusMessage is the JSON document published on the status topic.
type StatusMessage struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Traversal uint64    `json:"traversal,omitempty"`
	Tick      int       `json:"tick,omitempty"`
	ByMS      float64   `json:"by_ms,omitempty"`
	Policy    string    `json:"policy,omitempty"`
	Time      time.Time `json:"time"`
}

// Gateway bridges the frame protocol onto MQTT: every message on the frame
// topic is split into frames, each frame is processed and its reply is
// published on the reply topic.
type Gateway struct {
	cli  pahoClient
	cfg  Config
	proc FrameProcessor
	log  logger.Logger

	backoff time.Duration
	sleep   func(time.Duration)

	mu      sync.Mutex
	frames  atomic.Uint64
	replies atomic.Uint64
}

// NewGateway connects to the broker and subscribes to the frame topic.
func NewGateway(cfg Config, proc FrameProcessor, log logger.Logger) (*Gateway, error) {
	if proc == nil {
		return nil, fmt.Errorf("mqtt gateway: nil frame processor")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_gateway")
	}
	g := &Gateway{
		cfg:     cfg,
		proc:    proc,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		sleep:   time.Sleep,
	}

	opts.OnConnect = func(c paho.Client) {
		g.log.Infof("MQTT connected to %s", cfg.Broker)
		if token := c.Subscribe(cfg.FrameTopic, cfg.qos("frame"), g.onFrame); token.Wait() && token.Error() != nil {
			g.log.Errorf("subscribe %s: %v", cfg.FrameTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		g.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		g.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	g.cli = c
	return g, nil
}

func (g *Gateway) onFrame(_ paho.Client, msg paho.Message) {
	payload := msg.Payload()
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Split(frame.SplitFrames)
	found := false
	for sc.Scan() {
		found = true
		g.handle(sc.Bytes())
	}
	if !found && len(payload) > 0 {
		// no delimited frame at all still earns a structure ack
		g.handle(payload)
	}
}

func (g *Gateway) handle(raw []byte) {
	g.frames.Add(1)
	reply := g.proc.Process(raw)
	if err := g.publish(g.cfg.ReplyTopic, g.cfg.qos("reply"), false, reply); err != nil {
		g.log.Errorf("reply to %q: %v", raw, err)
		return
	}
	g.replies.Add(1)
	g.log.Debugw("frame handled", map[string]any{"frame": string(raw), "reply": string(reply)})
}

// publish sends payload with exponential backoff between failed attempts.
func (g *Gateway) publish(topic string, qos byte, retained bool, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		token := g.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		g.log.Errorf("publish %s attempt %d failed: %v", topic, attempt+1, err)
		if attempt < g.cfg.MaxRetries {
			g.sleep(g.backoff * time.Duration(1<<attempt))
		}
	}
	return err
}

// PublishStatus marshals msg to JSON and publishes it on the status topic.
func (g *Gateway) PublishStatus(msg StatusMessage) error {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return g.publish(g.cfg.StatusTopic, g.cfg.qos("status"), msg.Type == "state", payload)
}

// ForwardEvents publishes scheduler state changes and overruns from the bus
// until ctx is canceled or the bus is closed. The returned channel is closed
// once forwarding stopped.
func (g *Gateway) ForwardEvents(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				msg, ok := statusFor(ev)
				if !ok {
					continue
				}
				if err := g.PublishStatus(msg); err != nil {
					g.log.Warnf("publish status %s: %v", msg.Type, err)
				}
			}
		}
	}()
	return done
}

func statusFor(ev eventbus.Event) (StatusMessage, bool) {
	switch e := ev.(type) {
	case events.StateEvent:
		return StatusMessage{Type: "state", RunID: e.RunID, From: e.From, To: e.To, Time: e.Time}, true
	case events.OverrunEvent:
		return StatusMessage{
			Type:      "overrun",
			RunID:     e.RunID,
			Traversal: e.Traversal,
			Tick:      e.Tick,
			ByMS:      float64(e.By) / float64(time.Millisecond),
			Policy:    e.Policy,
		}, true
	}
	return StatusMessage{}, false
}

// Counts returns the number of frames received and replies published.
func (g *Gateway) Counts() (frames, replies uint64) {
	return g.frames.Load(), g.replies.Load()
}

// Close gracefully closes the MQTT connection.
func (g *Gateway) Close() {
	if g.cli != nil && g.cli.IsConnected() {
		g.cli.Disconnect(250)
	}
}
