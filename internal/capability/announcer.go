// Package capability advertises this node on the bus so other Loqa runtimes
// can discover the speech service and tell whether it is alive.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/catalog"
)

const (
	SubjectAnnounce        = "ctrl.node.announce"
	SubjectDiscover        = "ctrl.node.discover"
	SubjectHeartbeatPrefix = "ctrl.node.heartbeat."
)

type Capability struct {
	Name       string            `json:"name"`
	Tier       string            `json:"tier,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Announcement struct {
	NodeID       string       `json:"node_id"`
	Role         string       `json:"role"`
	Capabilities []Capability `json:"capabilities"`
	Timestamp    time.Time    `json:"timestamp"`
}

type Heartbeat struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Speech describes the synthesizer behind this node. Remote backends are
// tagged "cloud", everything else "local".
func Speech(mode, model string) Capability {
	tier := "local"
	if mode == "gemini" {
		tier = "cloud"
	}
	var voices, pitches, styles []string
	for _, v := range catalog.Voices() {
		voices = append(voices, v.ID)
	}
	for _, p := range catalog.Pitches() {
		pitches = append(pitches, p.ID)
	}
	for _, st := range catalog.Styles() {
		styles = append(styles, st.ID)
	}
	attrs := map[string]string{
		"mode":    mode,
		"voices":  strings.Join(voices, ","),
		"pitches": strings.Join(pitches, ","),
		"styles":  strings.Join(styles, ","),
		"format":  "audio/wav",
	}
	if mode == "gemini" && model != "" {
		attrs["model"] = model
	}
	return Capability{Name: "tts", Tier: tier, Attributes: attrs}
}

// Announcer publishes the node's capabilities once at start, heartbeats on
// an interval and answers discovery requests.
type Announcer struct {
	nodeID   string
	role     string
	caps     []Capability
	interval time.Duration
	bus      *bus.Client
	log      *slog.Logger
	sub      *nats.Subscription
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	beats    metric.Int64Counter
}

func NewAnnouncer(nodeID, role string, caps []Capability, interval time.Duration, busClient *bus.Client, log *slog.Logger) *Announcer {
	a := &Announcer{
		nodeID:   nodeID,
		role:     role,
		caps:     caps,
		interval: interval,
		bus:      busClient,
		log:      log.With(slog.String("component", "capability-announcer"), slog.String("node_id", nodeID)),
	}
	beats, err := otel.Meter("github.com/loqalabs/loqa-tts/capability").Int64Counter("loqa.node.heartbeats",
		metric.WithDescription("Heartbeats published by this node"))
	if err != nil {
		a.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	a.beats = beats
	return a
}

func (a *Announcer) Start(ctx context.Context) error {
	sub, err := a.bus.Conn().Subscribe(SubjectDiscover, a.handleDiscover)
	if err != nil {
		return fmt.Errorf("subscribe discover: %w", err)
	}
	a.sub = sub

	if err := a.bus.PublishJSON(SubjectAnnounce, a.announcement()); err != nil {
		a.log.Warn("failed to announce node", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.runHeartbeat(ctx)
	return nil
}

func (a *Announcer) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.sub != nil {
		_ = a.sub.Drain()
	}
	a.wg.Wait()
}

func (a *Announcer) announcement() Announcement {
	return Announcement{
		NodeID:       a.nodeID,
		Role:         a.role,
		Capabilities: a.caps,
		Timestamp:    time.Now().UTC(),
	}
}

func (a *Announcer) handleDiscover(msg *nats.Msg) {
	payload, err := json.Marshal(a.announcement())
	if err != nil {
		a.log.Warn("failed to marshal announcement", slog.String("error", err.Error()))
		return
	}
	if msg.Reply != "" {
		err = msg.Respond(payload)
	} else {
		err = a.bus.Conn().Publish(SubjectAnnounce, payload)
	}
	if err != nil {
		a.log.Warn("failed to answer discovery", slog.String("error", err.Error()))
	}
}

func (a *Announcer) runHeartbeat(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	subject := SubjectHeartbeatPrefix + a.nodeID
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.bus.PublishJSON(subject, Heartbeat{NodeID: a.nodeID, Timestamp: time.Now().UTC()}); err != nil {
				a.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
				continue
			}
			if a.beats != nil {
				a.beats.Add(ctx, 1)
			}
		}
	}
}
