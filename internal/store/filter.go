// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"slices"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Field names a filterable metadata column.
type Field string

const (
	FieldID       Field = "id"
	FieldCategory Field = "category"
	FieldName     Field = "name"
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota + 1
	OpIn
)

// Predicate is a single exact-match condition over one field.
type Predicate struct {
	Field  Field
	Op     Op
	Values []string
}

// Filter is a conjunction of predicates. A nil Filter matches everything.
type Filter []Predicate

// Eq matches patterns whose field equals value.
func Eq(field Field, value string) Predicate {
	return Predicate{Field: field, Op: OpEq, Values: []string{value}}
}

// In matches patterns whose field equals any of values. An empty set matches nothing.
func In(field Field, values ...string) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// And combines predicates into a Filter.
func And(preds ...Predicate) Filter {
	return Filter(preds)
}

// CategoryFilter returns an equality filter on category, or nil when category is empty.
func CategoryFilter(category string) Filter {
	if category == "" {
		return nil
	}
	return And(Eq(FieldCategory, category))
}

// Validate rejects unknown fields and operators and malformed equality predicates.
func (f Filter) Validate() error {
	for i, p := range f {
		switch p.Field {
		case FieldID, FieldCategory, FieldName:
		default:
			return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput,
				"filter[%d]: unsupported field %q", i, p.Field)
		}
		switch p.Op {
		case OpEq:
			if len(p.Values) != 1 {
				return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput,
					"filter[%d]: equality needs exactly one value, got %d", i, len(p.Values))
			}
		case OpIn:
		default:
			return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput,
				"filter[%d]: unsupported operator %d", i, p.Op)
		}
	}
	return nil
}

// Matches reports whether p satisfies every predicate of the filter.
func (f Filter) Matches(p *Pattern) bool {
	for _, pred := range f {
		if !slices.Contains(pred.Values, p.fieldValue(pred.Field)) {
			return false
		}
	}
	return true
}
