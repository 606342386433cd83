package llm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultContextWindow is the capacity assumed for models missing from a table.
const DefaultContextWindow = 4096

// ResolveMode selects how unknown models are handled.
type ResolveMode int

const (
	// ResolvePermissive returns the table default for unknown models and logs a warning.
	ResolvePermissive ResolveMode = iota
	// ResolveStrict fails with MODEL_NOT_FOUND for unknown models.
	ResolveStrict
)

func (m ResolveMode) String() string {
	if m == ResolveStrict {
		return "strict"
	}
	return "permissive"
}

// WindowEntry maps a model-name fragment to a context capacity in tokens.
type WindowEntry struct {
	Pattern  string
	Capacity int
}

// WindowTable is a read-only lookup of model context windows.
type WindowTable struct {
	Entries []WindowEntry
	Default int
}

// Lookup returns the capacity of the most specific entry whose pattern is
// contained in model. Longer patterns win; equal lengths keep table order.
func (t WindowTable) Lookup(model string) (int, bool) {
	best := -1
	for i, e := range t.Entries {
		if e.Pattern == "" || !strings.Contains(model, e.Pattern) {
			continue
		}
		if best < 0 || len(e.Pattern) > len(t.Entries[best].Pattern) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return t.Entries[best].Capacity, true
}

// Window is the outcome of a context window lookup.
type Window struct {
	Size     int
	Fallback bool // Size is the table default, not a matched entry
}

// WindowResolver resolves model names against a WindowTable.
type WindowResolver struct {
	provider string
	table    WindowTable
	logger   zerolog.Logger
}

// NewWindowResolver creates a resolver. A table without a default gets
// DefaultContextWindow.
func NewWindowResolver(provider string, table WindowTable, logger zerolog.Logger) *WindowResolver {
	if table.Default <= 0 {
		table.Default = DefaultContextWindow
	}
	entries := make([]WindowEntry, len(table.Entries))
	copy(entries, table.Entries)
	table.Entries = entries

	return &WindowResolver{
		provider: provider,
		table:    table,
		logger:   logger.With().Str("component", "windowResolver").Logger(),
	}
}

// Resolve returns the context window for model. Permissive mode never fails;
// strict mode reports unknown models as MODEL_NOT_FOUND.
func (r *WindowResolver) Resolve(model string, mode ResolveMode) (Window, error) {
	if size, ok := r.table.Lookup(model); ok {
		return Window{Size: size}, nil
	}

	if mode == ResolveStrict {
		return Window{}, NewProviderError(
			ErrorKindModelNotFound,
			r.provider,
			fmt.Sprintf("model %q not found in %s context window mapping", model, r.provider),
			nil,
		)
	}

	r.logger.Warn().
		Str("provider", r.provider).
		Str("model", model).
		Int("fallback", r.table.Default).
		Msg("Unknown model for context size, using fallback")
	return Window{Size: r.table.Default, Fallback: true}, nil
}

// Default returns the table's fallback capacity.
func (r *WindowResolver) Default() int {
	return r.table.Default
}
