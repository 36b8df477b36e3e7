package registry

import (
	"fmt"
	"strings"
)

// Mode selects what the registry is asked for: a standard introspection
// result or the raw schema document.
type Mode int

const (
	ModeIntrospection Mode = iota
	ModeDocument
)

func (m Mode) String() string {
	switch m {
	case ModeIntrospection:
		return "introspection"
	case ModeDocument:
		return "document"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "introspection" and "document" ("sdl" is an alias).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "introspection":
		return ModeIntrospection, nil
	case "document", "sdl":
		return ModeDocument, nil
	}
	return 0, fmt.Errorf("unknown registry mode %q", s)
}

func (m Mode) query() string {
	if m == ModeDocument {
		return documentQuery
	}
	return introspectionQuery
}
