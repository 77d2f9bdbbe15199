package refresh

import (
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/core/config"
)

type Config struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
}

// FromConfig takes the refresh settings from the service configuration.
// Events published before the consumer first joined are not replayed.
func FromConfig(c config.KafkaCfg) Config {
	return Config{
		Enabled:          c.RefreshEnabled,
		Brokers:          c.Brokers,
		Topic:            c.RefreshTopic,
		GroupID:          c.RefreshGroupID,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    false,
	}
}
