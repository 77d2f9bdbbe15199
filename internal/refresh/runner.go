package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
	"github.com/mohammed-shakir/wms-catalog/internal/core/ogc"
	"github.com/mohammed-shakir/wms-catalog/internal/logger"
)

// Reloader starts a new load for every live item on a service URL.
type Reloader interface {
	ReloadURL(ctx context.Context, rawURL string) int
}

type Runner struct {
	log      *slog.Logger
	cfg      Config
	reloader Reloader
	ver      *tsDedupe

	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, r Reloader, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		log:      log,
		cfg:      cfg,
		reloader: r,
		ver:      newTSDedupe(4096),
		assign:   map[int32]struct{}{},
	}
}

// Start joins the consumer group and consumes in the background until ctx
// ends or Stop is called. It returns nil at once when refresh is disabled.
func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("refresh consumer disabled")
		return nil
	}
	if r.reloader == nil {
		return errors.New("refresh: reloader is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup:   r.onAssign,
		cleanup: func(sarama.ConsumerGroupSession) { r.onRevoke() },
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("refresh consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("refresh consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("refresh group error", "err", err)
		}
	}()

	r.log.Info("refresh consumer started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("refresh consumer stopped")
}

// Readiness reports whether partitions are assigned. A disabled runner is
// always ready.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.cfg.Enabled {
		return true, nil
	}
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (r *Runner) onAssign(sess sarama.ConsumerGroupSession) {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()
	r.assigned.Store(true)
	r.assign = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			r.assign[p] = struct{}{}
		}
	}
}

func (r *Runner) onRevoke() {
	r.assignMu.Lock()
	r.assigned.Store(false)
	r.assign = map[int32]struct{}{}
	r.assignMu.Unlock()
}

// handleMessage applies one refresh event. Undecodable or invalid events are
// logged and committed so they never block the partition.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	ctx = logger.WithComponent(ctx, "refresh")
	log := r.log.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncRefreshEvent("invalid")
		log.Warn("refresh event dropped", "err", fmt.Errorf("decode: %w", err))
		return nil
	}
	if ev.TS.IsZero() {
		ev.TS = msg.Timestamp
	}
	if err := ev.Validate(); err != nil {
		observability.IncRefreshEvent("invalid")
		log.Warn("refresh event dropped", "err", fmt.Errorf("validate: %w", err))
		return nil
	}

	clean := ogc.CleanURL(ev.URL)
	if !r.ver.shouldApply(clean, ev.TS) {
		observability.IncRefreshEvent("duplicate")
		log.Debug("refresh event already applied", "url", clean, "ts", ev.TS)
		return nil
	}

	n := r.reloader.ReloadURL(ctx, clean)
	if n == 0 {
		observability.IncRefreshEvent("no_match")
	} else {
		observability.IncRefreshEvent("reloaded")
	}
	log.Info("refresh event applied", "url", clean, "items", n,
		"source", ev.Source, "took", time.Since(start).String())
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			// rebalance or shutdown
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
