// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package scanner screens text that crosses the pipeline boundary. Pattern
// content is checked for prompt-injection phrasing and credentials before it
// is stored, since it is later pasted verbatim into generation prompts.
// Generated output is checked for credentials before it is returned.
package scanner

import (
	"context"
	"regexp"
	"slices"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Stage identifies which boundary is being scanned.
type Stage string

const (
	StagePattern Stage = "pattern"
	StageOutput  Stage = "output"
)

func (s Stage) Valid() bool {
	return s == StagePattern || s == StageOutput
}

// Severity indicates how critical a detection is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Result holds the outcome of a scan.
type Result struct {
	Threat  bool
	Matches []Match
	// Content is the normalized text (NFKC, invisible characters removed).
	// Match offsets index into it, so redaction must use it too.
	Content string
}

// Match describes a single rule hit. Location and Length are byte offsets
// into Result.Content and are never negative.
type Match struct {
	Rule     string
	Location int
	Length   int
	Severity Severity
}

// Rules lists the distinct rule names that matched, in first-hit order.
func (r Result) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// Scanner scans content for threats.
type Scanner interface {
	Scan(ctx context.Context, content string, stage Stage) (Result, error)
}

// Rule defines a detection pattern for one stage.
type Rule struct {
	Stage    Stage
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// DefaultMaxContentLength caps the text RegexScanner will evaluate.
const DefaultMaxContentLength = 1 << 20

// RegexScanner implements Scanner with compiled regexes.
type RegexScanner struct {
	rules            []Rule
	maxContentLength int
}

// NewRegexScanner validates rules and builds a scanner over them.
func NewRegexScanner(rules []Rule) (*RegexScanner, error) {
	for i, r := range rules {
		if r.Pattern == nil {
			return nil, delmerr.Errorf(delmerr.CodeScannerRuleInvalid, "rule %d (%s) has nil pattern", i, r.Name)
		}
		if !r.Stage.Valid() {
			return nil, delmerr.Errorf(delmerr.CodeScannerRuleInvalid, "rule %d (%s) has invalid stage %q", i, r.Name, r.Stage)
		}
		if r.Name == "" {
			return nil, delmerr.Errorf(delmerr.CodeScannerRuleInvalid, "rule %d has empty name", i)
		}
		if !r.Severity.Valid() {
			return nil, delmerr.Errorf(delmerr.CodeScannerRuleInvalid, "rule %d (%s) has invalid severity %q", i, r.Name, r.Severity)
		}
	}
	return &RegexScanner{rules: rules, maxContentLength: DefaultMaxContentLength}, nil
}

var invisibleCharReplacer = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // BOM
	"\u00ad", "", // soft hyphen
	"\u034f", "", // combining grapheme joiner
	"\u061c", "", // Arabic letter mark
	"\u180e", "", // Mongolian vowel separator
	"\u2060", "", // word joiner
	"\u2061", "",
	"\u2062", "",
	"\u2063", "",
	"\u2064", "",
)

// normalize strips invisible characters and applies NFKC so homoglyph and
// zero-width tricks cannot split a match.
func normalize(s string) string {
	return norm.NFKC.String(invisibleCharReplacer.Replace(s))
}

// Scan checks content against the rules registered for stage.
func (s *RegexScanner) Scan(_ context.Context, content string, stage Stage) (Result, error) {
	if !stage.Valid() {
		return Result{}, delmerr.Errorf(delmerr.CodeScannerStageInvalid, "invalid scan stage %q", stage)
	}

	content = normalize(content)
	if len(content) > s.maxContentLength {
		return Result{Threat: true, Content: content, Matches: []Match{{
			Rule:     "content_too_large",
			Length:   len(content),
			Severity: SeverityHigh,
		}}}, nil
	}

	res := Result{Content: content}
	for _, rule := range s.rules {
		if rule.Stage != stage {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			res.Threat = true
			res.Matches = append(res.Matches, Match{
				Rule:     rule.Name,
				Location: loc[0],
				Length:   loc[1] - loc[0],
				Severity: rule.Severity,
			})
		}
	}
	return res, nil
}
