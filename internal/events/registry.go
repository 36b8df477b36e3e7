package events

import "time"

// RegistryFetchStart is emitted before the schema registry is called.
type RegistryFetchStart struct {
	Graph     string
	Specifier string
	Mode      string
}

// RegistryFetchFinish is emitted after the registry call completes.
// Status is the HTTP status code, 0 when no response was received.
type RegistryFetchFinish struct {
	Graph     string
	Specifier string
	Mode      string
	Status    int
	Err       error
	Duration  time.Duration
}
