// Package resolveevents publishes one Kafka event per completed capabilities
// load of a catalog item.
package resolveevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog/override"
)

type Event struct {
	ItemID       string                 `json:"itemId"`
	LoadID       string                 `json:"loadId"`
	URL          string                 `json:"url"`
	Layers       string                 `json:"layers"`
	State        string                 `json:"state"`
	DurationMS   int64                  `json:"durationMs"`
	Rectangle    *extent.GeoBoundingBox `json:"rectangle,omitempty"`
	Intervals    int                    `json:"intervals"`
	ServiceError string                 `json:"serviceErrorMessage,omitempty"`
	LayerError   string                 `json:"dataSourceErrorMessage,omitempty"`
	TS           time.Time              `json:"ts"`
}

// Producer is the part of sarama.AsyncProducer the publisher uses.
type Producer interface {
	Input() chan<- *sarama.ProducerMessage
	Errors() <-chan *sarama.ProducerError
	Close() error
}

type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    Producer
	stopped chan struct{}
}

// NewPublisher connects an async producer to brokers.
func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolveevents: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, log), nil
}

func newPublisher(prod Producer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("resolveevents: marshal error", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.ItemID),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("resolveevents: producer error", "err", err)
			}
		}
	}()
	return p
}

// Publish queues ev and never blocks; a full queue drops it.
func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Debug("resolveevents: queue full, event dropped", "item_id", ev.ItemID)
	}
}

// Hook converts a completed load into an event. Its signature matches
// registry.LoadHook.
func (p *Publisher) Hook(_ context.Context, id string, it *catalog.Item, m *catalog.Metadata) {
	p.Publish(FromLoad(id, it, m))
}

func FromLoad(id string, it *catalog.Item, m *catalog.Metadata) Event {
	ev := Event{
		ItemID:       id,
		LoadID:       m.ID,
		URL:          it.URL(),
		Layers:       it.Layers(),
		State:        m.State().String(),
		DurationMS:   m.Duration().Milliseconds(),
		Intervals:    len(it.Intervals()),
		ServiceError: m.ServiceErrorMessage(),
		LayerError:   m.DataSourceErrorMessage(),
		TS:           time.Now().UTC(),
	}
	if box, src := it.RectangleSource(); src != override.Default {
		ev.Rectangle = &box
	}
	return ev
}

// Close drains the queue and closes the producer. Publish must not be called
// afterwards.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("resolveevents: close producer: %w", err)
	}
	return nil
}
