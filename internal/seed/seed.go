// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package seed loads starter design patterns from YAML and ingests them
// into a retrieval pipeline.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatternsYAML []byte

// File is the on-disk seed format.
type File struct {
	Patterns []Entry `yaml:"patterns"`
}

// Entry is one pattern in a seed file.
type Entry struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags,omitempty"`
	Content  string   `yaml:"content"`
}

func (e Entry) input() rag.PatternInput {
	return rag.PatternInput{
		ID:       e.ID,
		Content:  e.Content,
		Category: e.Category,
		Name:     e.Name,
		Tags:     e.Tags,
	}
}

// Validate returns every problem found in the file.
func (f *File) Validate() []error {
	var errs []error

	seen := make(map[string]int, len(f.Patterns))
	for i, e := range f.Patterns {
		if strings.TrimSpace(e.ID) == "" {
			errs = append(errs, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat,
				"seed: patterns[%d]: id must not be empty", i))
		} else if first, dup := seen[e.ID]; dup {
			errs = append(errs, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat,
				"seed: patterns[%d]: id %q already used by patterns[%d]", i, e.ID, first))
		} else {
			seen[e.ID] = i
		}

		if strings.TrimSpace(e.Content) == "" {
			errs = append(errs, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat,
				"seed: patterns[%d]: content must not be empty", i))
		}
	}

	return errs
}

// Load parses a seed file. Unknown keys are rejected so typos surface.
func Load(r io.Reader) ([]rag.PatternInput, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat, "seed parse: %s", err)
	}

	if errs := f.Validate(); len(errs) > 0 {
		return nil, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat, "invalid seed file: %w", errors.Join(errs...))
	}

	inputs := make([]rag.PatternInput, len(f.Patterns))
	for i, e := range f.Patterns {
		inputs[i] = e.input()
	}
	return inputs, nil
}

// LoadFile is Load on a path.
func LoadFile(path string) ([]rag.PatternInput, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, delmerr.Errorf(delmerr.CodeSeedParseInvalidFormat, "opening seed file %s: %v", path, err)
	}
	defer func() { _ = fh.Close() }()

	return Load(fh)
}

var (
	defaultOnce   sync.Once
	defaultInputs []rag.PatternInput
	defaultErr    error
)

// Default returns the built-in pattern set (components, layouts, styles,
// accessibility). Callers get their own copy.
func Default() ([]rag.PatternInput, error) {
	defaultOnce.Do(func() {
		defaultInputs, defaultErr = Load(bytes.NewReader(defaultPatternsYAML))
	})
	if defaultErr != nil {
		return nil, defaultErr
	}

	out := make([]rag.PatternInput, len(defaultInputs))
	for i, in := range defaultInputs {
		in.Tags = append([]string(nil), in.Tags...)
		out[i] = in
	}
	return out, nil
}

// Target is where seeded patterns go. *rag.Pipeline satisfies it.
type Target interface {
	Get(ctx context.Context, id string) (*store.Pattern, bool, error)
	AddPatternInputs(ctx context.Context, inputs []rag.PatternInput) error
}

// Result reports what Apply did.
type Result struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
}

// Apply ingests patterns whose ids are not already stored, in one batch.
// Existing ids are skipped rather than overwritten.
func Apply(ctx context.Context, target Target, patterns []rag.PatternInput) (Result, error) {
	var res Result
	fresh := make([]rag.PatternInput, 0, len(patterns))

	for _, in := range patterns {
		_, exists, err := target.Get(ctx, in.ID)
		if err != nil {
			return res, delmerr.Wrap(err, delmerr.CodeSeedApplyFailure, "checking existing pattern",
				delmerr.FieldPatternID(in.ID))
		}
		if exists {
			slog.Info("seed pattern already present, skipping", "pattern_id", in.ID)
			res.Skipped = append(res.Skipped, in.ID)
			continue
		}
		fresh = append(fresh, in)
	}

	if err := target.AddPatternInputs(ctx, fresh); err != nil {
		return res, err
	}
	for _, in := range fresh {
		res.Applied = append(res.Applied, in.ID)
	}

	slog.Info("seed applied", "applied", len(res.Applied), "skipped", len(res.Skipped))
	return res, nil
}
