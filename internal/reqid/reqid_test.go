package reqid

import (
	"context"
	"strconv"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %d from context, got %d ok=%v", id, got, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestFormat(t *testing.T) {
	_, id := NewContext(context.Background())
	back, err := strconv.ParseInt(Format(id), 36, 64)
	if err != nil || back != id {
		t.Fatalf("Format(%d) = %q does not parse back: %v", id, Format(id), err)
	}
}
