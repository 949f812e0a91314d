package connections

import "sync"

// Some dialects have implicit autocommit and break when an explicit COMMIT
// is issued after each statement.
var (
	commitBlacklistMu sync.RWMutex
	commitBlacklist   = map[string]struct{}{
		"athena":     {},
		"clickhouse": {},
		"ingres":     {},
		"mssql":      {},
		"teradata":   {},
		"vertica":    {},
	}
)

// BlacklistCommit marks a dialect as one that must not receive COMMIT.
// Bootstrapping adds dialects here when a datasource declares
// sqlmagic_autocommit=false.
func BlacklistCommit(dialect string) {
	commitBlacklistMu.Lock()
	defer commitBlacklistMu.Unlock()
	commitBlacklist[dialect] = struct{}{}
}

// NeedsCommit reports whether statements on the dialect should be followed
// by an explicit COMMIT.
func NeedsCommit(dialect string) bool {
	commitBlacklistMu.RLock()
	defer commitBlacklistMu.RUnlock()
	_, blacklisted := commitBlacklist[dialect]
	return !blacklisted
}
