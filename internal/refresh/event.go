// Package refresh reloads catalog items when a capabilities refresh event for
// their service arrives on Kafka.
package refresh

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Event asks every live item reading from URL to load its capabilities
// again. TS orders events for one URL; older or repeated ones are skipped.
type Event struct {
	Version int       `json:"version"`
	URL     string    `json:"url"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
