package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/metadata"
)

var (
	ErrTransport              = errors.New("capabilities request failed")
	ErrServiceMetadataMissing = errors.New("service metadata missing")
	ErrLayerNotFound          = errors.New("layer not found")
)

const (
	msgServiceMissing = "Service information not found in GetCapabilities operation response."
	msgLayerMissing   = "Layer information not found in GetCapabilities operation response."
	msgTransport      = "An error occurred while invoking the GetCapabilities service."
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Uninitialized, Loading, Ready, Failed} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Metadata is the outcome of one load cycle. It starts in Loading and moves
// exactly once to Ready or Failed, after which it never changes.
type Metadata struct {
	ID string

	mu         sync.RWMutex
	state      State
	started    time.Time
	finished   time.Time
	serviceErr error
	dataErr    error
	service    *metadata.Node
	dataSource *metadata.Node

	done chan struct{}
}

func newMetadata() *Metadata {
	return &Metadata{
		ID:      uuid.NewString(),
		state:   Loading,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// finish records the load result and releases waiters.
func (m *Metadata) finish(res Resolution, fetchErr error) {
	m.mu.Lock()
	if fetchErr != nil {
		err := fmt.Errorf("%w: %w", ErrTransport, fetchErr)
		m.state = Failed
		m.serviceErr = err
		m.dataErr = err
	} else {
		m.state = Ready
		m.service = res.Service
		m.dataSource = res.DataSource
		m.serviceErr = res.ServiceErr
		m.dataErr = res.DataSourceErr
	}
	m.finished = time.Now()
	m.mu.Unlock()
	close(m.done)
}

func (m *Metadata) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Metadata) IsLoading() bool { return m.State() == Loading }

// Done is closed when the load cycle completes.
func (m *Metadata) Done() <-chan struct{} { return m.done }

// Wait blocks until the load completes or ctx ends.
func (m *Metadata) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Service is the display tree of the service block, nil until Ready.
func (m *Metadata) Service() *metadata.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.service
}

// DataSource is the display tree of the requested layers.
func (m *Metadata) DataSource() *metadata.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataSource
}

func (m *Metadata) ServiceErrorMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return message(m.serviceErr)
}

func (m *Metadata) DataSourceErrorMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return message(m.dataErr)
}

// Err joins the service and data source errors. Both wrap the same transport
// failure when the fetch failed, so it is reported once.
func (m *Metadata) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.serviceErr != nil && m.serviceErr == m.dataErr {
		return m.serviceErr
	}
	return errors.Join(m.serviceErr, m.dataErr)
}

// Duration of the load, zero while loading.
func (m *Metadata) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.finished.IsZero() {
		return 0
	}
	return m.finished.Sub(m.started)
}

func message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return msgTransport
	case errors.Is(err, ErrServiceMetadataMissing):
		return msgServiceMissing
	case errors.Is(err, ErrLayerNotFound):
		return msgLayerMissing
	default:
		return err.Error()
	}
}

type metadataJSON struct {
	ID                     string         `json:"id"`
	State                  State          `json:"state"`
	ServiceErrorMessage    string         `json:"serviceErrorMessage,omitempty"`
	DataSourceErrorMessage string         `json:"dataSourceErrorMessage,omitempty"`
	Detail                 string         `json:"detail,omitempty"`
	Service                *metadata.Node `json:"serviceMetadata,omitempty"`
	DataSource             *metadata.Node `json:"dataSourceMetadata,omitempty"`
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	out := metadataJSON{
		ID:                     m.ID,
		State:                  m.State(),
		ServiceErrorMessage:    m.ServiceErrorMessage(),
		DataSourceErrorMessage: m.DataSourceErrorMessage(),
		Service:                m.Service(),
		DataSource:             m.DataSource(),
	}
	if err := m.Err(); err != nil {
		out.Detail = err.Error()
	}
	return json.Marshal(out)
}
