// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Registry manages provider registration, lookup, and routing of
// "provider/model" references with an optional failover chain.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model" format
	failover   []string // ordered list of "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any previous
// provider of the same name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, delmerr.New(
			delmerr.CodeProviderNotFound,
			"provider not found: "+name,
			delmerr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses reports every registered provider in name order. A provider whose
// Status call fails is reported unavailable with the error as its message.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	providers := maps.Clone(r.providers)
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		st, err := providers[name].Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: name, Message: err.Error()}
		}
		if st.Provider == "" {
			st.Provider = name
		}
		out = append(out, st)
	}
	return out
}

// SetDefault sets the "provider/model" reference used when no model is
// requested. Returns an error if the ref is malformed or its provider is not
// registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// Route selects an available provider for modelRef and returns it with the
// bare model name. An empty modelRef (or "default") selects the default.
// When the chosen provider is unavailable the failover chain is walked in order,
// skipping any provider named in exclude.
func (r *Registry) Route(ctx context.Context, modelRef string, exclude ...string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref := r.defaultRef
	if modelRef != "" && modelRef != "default" {
		if _, _, ok := splitRef(modelRef); !ok {
			return nil, "", delmerr.Errorf(delmerr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelRef)
		}
		ref = modelRef
	}
	if ref == "" {
		return nil, "", delmerr.New(delmerr.CodeProviderNoDefault, "no default provider configured")
	}

	candidates := append([]string{ref}, r.failover...)
	var lastErr error
	for _, candidate := range candidates {
		name, _, _ := splitRef(candidate)
		if slices.Contains(exclude, name) {
			continue
		}
		p, model, err := r.tryRefLocked(ctx, candidate)
		if err == nil {
			return p, model, nil
		}
		lastErr = err
	}

	fields := []delmerr.Attr{delmerr.Field("candidates", len(candidates))}
	if lastErr != nil {
		fields = append(fields, delmerr.Field("last_error", lastErr.Error()))
	}
	return nil, "", delmerr.New(delmerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found", fields...)
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return delmerr.Join(errs...)
	}
	return nil
}

func (r *Registry) checkRefLocked(ref string) error {
	name, _, ok := splitRef(ref)
	if !ok {
		return delmerr.Errorf(delmerr.CodeProviderInvalidModelRef, "model ref %q must use provider/model format", ref)
	}
	if _, registered := r.providers[name]; !registered {
		return delmerr.New(
			delmerr.CodeProviderNotFound,
			"provider not registered: "+name,
			delmerr.FieldProvider(name),
		)
	}
	return nil
}

// tryRefLocked looks up the provider for ref and checks availability.
// Caller must hold r.mu (at least RLock).
func (r *Registry) tryRefLocked(ctx context.Context, ref string) (Provider, string, error) {
	name, model, _ := splitRef(ref)

	p, ok := r.providers[name]
	if !ok {
		return nil, "", delmerr.New(
			delmerr.CodeProviderNotFound,
			"provider not found: "+name,
			delmerr.FieldProvider(name),
		)
	}
	if !p.Available(ctx) {
		return nil, "", delmerr.New(
			delmerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+name,
			delmerr.FieldProvider(name),
		)
	}
	return p, model, nil
}

// splitRef splits a "provider/model" reference on the first "/".
// Both halves must be non-empty.
func splitRef(ref string) (providerName, model string, ok bool) {
	providerName, model, found := strings.Cut(ref, "/")
	return providerName, model, found && providerName != "" && model != ""
}
