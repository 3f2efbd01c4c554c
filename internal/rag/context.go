// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"strconv"
	"strings"

	"github.com/sigil-dev/delm/internal/store"
)

// FallbackContext is handed to the generator when retrieval found nothing.
const FallbackContext = "No specific design patterns found. Use general best practices."

const defaultCategory = "general"

// BuildContext renders results, in order, as labelled blocks separated by
// blank lines. It never returns an empty string and never truncates.
func BuildContext(results []store.Result) string {
	if len(results) == 0 {
		return FallbackContext
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := r.Metadata.Name
		if name == "" {
			name = "Pattern " + strconv.Itoa(i+1)
		}
		category := r.Metadata.Category
		if category == "" {
			category = defaultCategory
		}
		b.WriteString("--- ")
		b.WriteString(name)
		b.WriteString(" (")
		b.WriteString(category)
		b.WriteString(") ---\n")
		b.WriteString(r.Content)
	}
	return b.String()
}
