// Package reqid tags each inbound request with a random identifier so that
// events emitted along the pipeline can be correlated.
package reqid

import (
	"context"
	"math/rand/v2"
	"strconv"
)

// Header is the response header that echoes the request ID to the client.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}

// Format renders id the way it appears in headers and logs.
func Format(id int64) string { return strconv.FormatInt(id, 36) }
