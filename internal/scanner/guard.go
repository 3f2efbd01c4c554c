// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package scanner

import (
	"context"
	"log/slog"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Default modes used when GuardConfig leaves a field empty.
const (
	DefaultPatternMode = ModeBlock
	DefaultOutputMode  = ModeRedact
)

// GuardConfig picks the mode applied at each stage.
type GuardConfig struct {
	PatternMode Mode
	OutputMode  Mode
}

// Guard applies a Scanner at the pattern and output boundaries.
// *Guard satisfies rag.ContentGuard.
type Guard struct {
	scanner     Scanner
	patternMode Mode
	outputMode  Mode
}

// NewGuard builds a Guard over s. A nil s uses the default rule set.
func NewGuard(s Scanner, cfg GuardConfig) (*Guard, error) {
	if s == nil {
		rs, err := NewRegexScanner(DefaultRules())
		if err != nil {
			return nil, err
		}
		s = rs
	}
	if cfg.PatternMode == "" {
		cfg.PatternMode = DefaultPatternMode
	}
	if cfg.OutputMode == "" {
		cfg.OutputMode = DefaultOutputMode
	}
	for _, m := range []Mode{cfg.PatternMode, cfg.OutputMode} {
		if !m.Valid() {
			return nil, delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue, "invalid scanner mode %q, want one of %v", m, Modes())
		}
	}
	return &Guard{scanner: s, patternMode: cfg.PatternMode, outputMode: cfg.OutputMode}, nil
}

// CheckPattern screens pattern content before it is embedded and stored.
func (g *Guard) CheckPattern(ctx context.Context, id, content string) (string, error) {
	out, err := g.check(ctx, StagePattern, g.patternMode, content, "pattern_id", id)
	return out, delmerr.With(err, delmerr.FieldPatternID(id))
}

// CheckOutput screens generator output before it reaches the caller.
func (g *Guard) CheckOutput(ctx context.Context, output string) (string, error) {
	return g.check(ctx, StageOutput, g.outputMode, output)
}

func (g *Guard) check(ctx context.Context, stage Stage, mode Mode, content string, logArgs ...any) (string, error) {
	if mode == ModeOff {
		return content, nil
	}

	res, err := g.scanner.Scan(ctx, content, stage)
	if err != nil {
		return "", err
	}
	if res.Threat {
		slog.Warn("scanner matched content",
			append([]any{"stage", stage, "mode", mode, "rules", res.Rules(), "matches", len(res.Matches)}, logArgs...)...)
	}
	return ApplyMode(mode, stage, content, res)
}
