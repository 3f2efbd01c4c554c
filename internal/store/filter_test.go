// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"

	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Matches(t *testing.T) {
	p := &store.Pattern{ID: "btn-1", Metadata: store.Metadata{Category: "components", Name: "Button"}}

	tests := []struct {
		name   string
		filter store.Filter
		want   bool
	}{
		{"nil filter matches everything", nil, true},
		{"category equality", store.CategoryFilter("components"), true},
		{"category mismatch", store.CategoryFilter("layouts"), false},
		{"empty category means no filter", store.CategoryFilter(""), true},
		{"set membership", store.And(store.In(store.FieldCategory, "layouts", "components")), true},
		{"empty set matches nothing", store.And(store.In(store.FieldCategory)), false},
		{"conjunction", store.And(store.Eq(store.FieldCategory, "components"), store.Eq(store.FieldName, "Button")), true},
		{"conjunction one false", store.And(store.Eq(store.FieldCategory, "components"), store.Eq(store.FieldID, "card-1")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(p))
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	require.NoError(t, store.And(store.Eq(store.FieldCategory, "x"), store.In(store.FieldID, "a", "b")).Validate())

	err := store.And(store.Eq("tags", "x")).Validate()
	require.Error(t, err)
	assert.True(t, delmerr.IsInvalidInput(err))

	err = store.Filter{{Field: store.FieldCategory, Op: store.OpEq, Values: []string{"a", "b"}}}.Validate()
	require.Error(t, err)

	err = store.Filter{{Field: store.FieldCategory, Op: 99, Values: []string{"a"}}}.Validate()
	require.Error(t, err)
}

func TestTagsRoundTrip(t *testing.T) {
	assert.Nil(t, store.SplitTags(""))
	assert.Equal(t, "", store.JoinTags(nil))
	assert.Equal(t, []string{"button", "form"}, store.SplitTags(store.JoinTags([]string{"button", "form"})))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, store.CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1.0, store.CosineDistance([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, 2.0, store.CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}
