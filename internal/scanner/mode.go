// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package scanner

import (
	"slices"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Mode defines what happens to content that matched a rule.
type Mode string

const (
	ModeBlock  Mode = "block"
	ModeFlag   Mode = "flag"
	ModeRedact Mode = "redact"
	ModeOff    Mode = "off"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeBlock, ModeFlag, ModeRedact, ModeOff}
}

func (m Mode) Valid() bool {
	return slices.Contains(Modes(), m)
}

// ParseMode parses a mode string, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(s))
	if !m.Valid() {
		return "", delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue, "invalid scanner mode %q, want one of %v", s, Modes())
	}
	return m, nil
}

// ApplyMode returns the content to keep for a scan result. Clean content and
// flag mode return content unchanged. Redact masks every match in the
// normalized text. Block returns an error coded for the stage.
func ApplyMode(mode Mode, stage Stage, content string, res Result) (string, error) {
	if !res.Threat || mode == ModeOff {
		return content, nil
	}

	switch mode {
	case ModeFlag:
		return content, nil
	case ModeRedact:
		return redact(res.Content, res.Matches), nil
	case ModeBlock:
		code := delmerr.CodeScannerPatternRejected
		if stage == StageOutput {
			code = delmerr.CodeScannerOutputBlocked
		}
		return "", delmerr.New(code, "content blocked by scanner",
			delmerr.Field("stage", string(stage)),
			delmerr.Field("rules", res.Rules()),
		)
	default:
		return "", delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue, "unknown scanner mode %q", mode)
	}
}

const redactedMarker = "[REDACTED]"

// redact replaces matched regions with a marker, merging overlaps.
func redact(content string, matches []Match) string {
	sorted := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Location < 0 || m.Length < 0 || m.Location > len(content)
	})
	if len(sorted) == 0 {
		return content
	}
	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
			continue
		}
		spans = append(spans, span{m.Location, end})
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range spans {
		b.WriteString(content[pos:s.start])
		b.WriteString(redactedMarker)
		pos = min(s.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}
