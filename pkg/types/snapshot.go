package types

import "time"

// Envelope is what a connected page receives: one broadcast batch.
// Serial increases per team so clients can drop duplicates after a
// reconnect.
type Envelope struct {
	Serial    int64       `json:"serial"`
	Timestamp float64     `json:"timestamp"`
	Messages  []Directive `json:"messages"`
}

// UnixSeconds converts t to the fractional seconds the page uses for
// countdowns.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
