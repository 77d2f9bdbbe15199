// Package timedim turns a layer's time dimension into a sequence of intervals.
package timedim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

var (
	ErrMalformedTimestamp = errors.New("timedim: malformed timestamp")
	ErrMissingExtent      = errors.New("timedim: time dimension references a missing extent")
)

// Interval is half-open: [Start, Stop). Data keeps the token exactly as the
// server listed it, suitable for a TIME request parameter.
type Interval struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
	Data  string    `json:"data"`
}

func (iv Interval) Duration() time.Duration { return iv.Stop.Sub(iv.Start) }

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.Stop)
}

// Sequence is ascending by Start and non-overlapping.
type Sequence []Interval

// At returns the interval containing t.
func (s Sequence) At(t time.Time) (Interval, bool) {
	for _, iv := range s {
		if iv.Contains(t) {
			return iv, true
		}
	}
	return Interval{}, false
}

func (s Sequence) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Start
}

func (s Sequence) Stop() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Stop
}

// Of reads the time dimension of a layer. A nil sequence with a nil error
// means the layer is not time-varying: no time dimension, or a single listed
// time.
//
// WMS 1.3.0 lists the values inside the Dimension element; 1.1.x declares an
// empty Dimension and puts the values in a sibling Extent with the same name.
func Of(layer *tree.Node) (Sequence, error) {
	var dim *tree.Node
	for _, d := range layer.Get("Dimension").All() {
		if d.Str("name") == "time" {
			dim = d
			break
		}
	}
	if dim == nil {
		return nil, nil
	}

	value := strings.TrimSpace(dim.Text())
	if value == "" {
		ext := findExtent(layer)
		if ext == nil {
			return nil, ErrMissingExtent
		}
		value = strings.TrimSpace(ext.Text())
		if value == "" {
			return nil, fmt.Errorf("%w: extent has no value", ErrMissingExtent)
		}
	}
	return Build(value)
}

func findExtent(layer *tree.Node) *tree.Node {
	for _, e := range layer.Get("Extent").All() {
		if e.Str("name") == "time" {
			return e
		}
	}
	return nil
}

// Build converts a comma-separated list of timestamps into intervals. Each
// token runs until the next one; the last token reuses the duration of the
// interval before it, so N tokens give N intervals. A single token yields
// nil. Tokens must not go back in time.
func Build(value string) (Sequence, error) {
	tokens := strings.Split(value, ",")
	if len(tokens) < 2 {
		if _, err := ParseTimestamp(strings.TrimSpace(value)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	times := make([]time.Time, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		tokens[i] = tok
		t, err := ParseTimestamp(tok)
		if err != nil {
			return nil, err
		}
		if i > 0 && t.Before(times[i-1]) {
			return nil, fmt.Errorf("%w: %q comes before %q", ErrMalformedTimestamp, tok, tokens[i-1])
		}
		times[i] = t
	}

	out := make(Sequence, 0, len(tokens))
	for i := range tokens {
		start := times[i]
		var stop time.Time
		if i < len(tokens)-1 {
			stop = times[i+1]
		} else {
			prev := out[len(out)-1]
			stop = start.Add(prev.Duration())
		}
		out = append(out, Interval{Start: start, Stop: stop, Data: tokens[i]})
	}
	return out, nil
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTimestamp accepts the ISO 8601 forms servers commonly list: full
// date-times with optional fraction and zone, date-times without seconds,
// calendar dates, year-month and bare years. A missing zone means UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}
