package rules

import (
	"log/slog"
	"sync/atomic"
)

// Provider owns the process-wide cached ruleset. The ruleset is read-only
// after load; Reload builds a fresh Ruleset and atomically swaps the handle,
// so readers never block and in-flight detections keep the snapshot they
// started with.
type Provider struct {
	path    string
	current atomic.Pointer[Ruleset]
	logger  *slog.Logger
}

// NewProvider loads the rules document at path. A missing or malformed
// document falls back to an empty rule list with built-in thresholds and logs
// a warning; startup never fails on configuration.
func NewProvider(path string, logger *slog.Logger) *Provider {
	p := &Provider{path: path, logger: logger}
	p.current.Store(p.load())
	return p
}

// Current returns the active ruleset snapshot.
func (p *Provider) Current() *Ruleset {
	return p.current.Load()
}

// Reload re-reads the rules document and swaps in the result. A load failure
// keeps the previous snapshot active and returns the error.
func (p *Provider) Reload() error {
	rs, err := LoadFile(p.path)
	if err != nil {
		p.logger.Warn("rules reload failed, keeping previous ruleset", "path", p.path, "error", err)
		return err
	}
	p.current.Store(rs)
	p.logger.Info("rules reloaded", "path", p.path, "rules", len(rs.Rules))
	return nil
}

func (p *Provider) load() *Ruleset {
	if p.path == "" {
		p.logger.Warn("no rules document configured, using built-in thresholds")
		return &Ruleset{Thresholds: DefaultThresholds()}
	}
	rs, err := LoadFile(p.path)
	if err != nil {
		p.logger.Warn("rules document unavailable, using built-in thresholds", "path", p.path, "error", err)
		return &Ruleset{Thresholds: DefaultThresholds()}
	}
	p.logger.Info("rules loaded", "path", p.path, "rules", len(rs.Rules))
	return rs
}
