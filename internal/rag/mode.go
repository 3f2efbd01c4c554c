// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"fmt"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Mode selects the instruction template used for generation.
type Mode string

const (
	ModeComponent Mode = "component"
	ModeStyles    Mode = "styles"
	ModeLayout    Mode = "layout"
	ModeGeneric   Mode = "generic"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeComponent, ModeStyles, ModeLayout, ModeGeneric}
}

// ParseMode maps a user-supplied string to a Mode. Empty selects ModeComponent.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeComponent, nil
	}
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", delmerr.With(
			delmerr.Errorf(delmerr.CodeRAGRequestInvalid, "unknown generation mode %q, want one of %v", s, Modes()),
			delmerr.Field("mode", s),
		)
	}
	return m, nil
}

func (m Mode) Valid() bool {
	_, ok := templates[m]
	return ok
}

func (m Mode) String() string { return string(m) }

// template holds the system and user framing for one mode. Both are
// fmt formats taking a single %s: the context block and the prompt.
type template struct {
	system string
	user   string
}

var templates = map[Mode]template{
	ModeComponent: {
		system: `You are an expert React developer. Generate complete, working UI components using React, TypeScript, and Tailwind CSS.

IMPORTANT: Output ONLY valid TypeScript/React code. No explanations, no markdown, just the code.

Reference these design patterns:
%s

Requirements:
- Use TypeScript with proper interfaces
- Use Tailwind CSS for all styling
- Include all necessary imports
- Make components fully functional`,
		user: "Create this React component: %s\n\nOutput only the complete TypeScript code:",
	},
	ModeStyles: {
		system: `You are an expert UI designer. Generate CSS styles, Tailwind configurations, or design tokens.

IMPORTANT: Output ONLY valid code. No explanations, no markdown.

Reference patterns:
%s`,
		user: "Create these styles: %s\n\nOutput only the code:",
	},
	ModeLayout: {
		system: `You are an expert React developer. Generate page layouts using React and Tailwind CSS.

IMPORTANT: Output ONLY valid TypeScript/React code. No explanations, no markdown.

Reference patterns:
%s`,
		user: "Create this layout: %s\n\nOutput only the complete TypeScript code:",
	},
	ModeGeneric: {
		system: "Context:\n%s",
		user:   "%s",
	},
}

// Render returns the (user, system) prompt pair for this mode.
func (m Mode) Render(prompt, context string) (user, system string) {
	t := templates[m]
	return fmt.Sprintf(t.user, prompt), fmt.Sprintf(t.system, context)
}
