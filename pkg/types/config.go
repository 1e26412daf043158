package types

import "errors"

// AppState holds the engine settings that the original application kept as
// implicit process globals. It is loaded once at startup, passed explicitly
// to the components that need it, and persisted only on specific triggers
// (a rendered query being saved, a settings edit).
type AppState struct {
	// RowLimit is the sanity threshold for loaded result sets. Loads above
	// it are allowed but the caller is warned before proceeding.
	RowLimit int `json:"row_limit" yaml:"row_limit"`

	// RecheckSeconds is how long a successful reachability probe of the
	// store stays cached before the link is probed again.
	RecheckSeconds int `json:"recheck_seconds" yaml:"recheck_seconds"`

	// ReadOnly rejects all cell edits at the cache boundary.
	ReadOnly bool `json:"read_only" yaml:"read_only"`

	// LastQueries maps a query key ("queries/<table>") to the last rendered
	// SQL for that table, replayed verbatim on "refresh last query".
	LastQueries map[string]string `json:"last_queries" yaml:"last_queries"`
}

// AppState validation errors.
var (
	ErrRowLimitInvalid = errors.New("row limit must be positive")
	ErrRecheckInvalid  = errors.New("recheck interval must be positive")
)

// DefaultAppState returns the settings used when no config file exists yet.
func DefaultAppState() AppState {
	return AppState{
		RowLimit:       5000,
		RecheckSeconds: 60,
		LastQueries:    map[string]string{},
	}
}

// Validate checks that the AppState is well-formed, returning a sentinel
// error from this package on failure.
func (s AppState) Validate() error {
	if s.RowLimit <= 0 {
		return ErrRowLimitInvalid
	}
	if s.RecheckSeconds <= 0 {
		return ErrRecheckInvalid
	}
	return nil
}

// LastQuery returns the saved SQL for a query key.
func (s AppState) LastQuery(key string) (string, bool) {
	sql, ok := s.LastQueries[key]
	return sql, ok
}

// SetLastQuery records the rendered SQL for a query key. The caller decides
// when to persist the state.
func (s *AppState) SetLastQuery(key, sql string) {
	if s.LastQueries == nil {
		s.LastQueries = map[string]string{}
	}
	s.LastQueries[key] = sql
}
