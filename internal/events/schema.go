package events

import "time"

// SchemaBuildFinish is emitted after a fetched payload was turned into an
// executable schema, or failed to.
type SchemaBuildFinish struct {
	Mode     string
	Types    int
	Err      error
	Duration time.Duration
}
