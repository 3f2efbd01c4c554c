// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps provider API keys out of config files. A config value
// of the form keyring://service/key is replaced with the secret stored in the
// OS keyring before the value reaches a provider or embedding client.
package secrets

// DefaultService is the keyring service delm stores its own keys under.
const DefaultService = "delm"

// ProviderKeyURI is the conventional config reference for a provider's API
// key, e.g. keyring://delm/anthropic. `delm secret set <provider>` stores the
// value it points at. Embeddings reuse the entry of the same provider.
func ProviderKeyURI(provider string) string {
	return URI(DefaultService, provider)
}

// Store is the secret backend. The OS keyring implements it; tests swap in
// a map.
type Store interface {
	Store(service, key, value string) error

	// Retrieve returns a secret.not_found coded error for a missing key.
	Retrieve(service, key string) (string, error)

	// Delete returns a secret.not_found coded error for a missing key.
	Delete(service, key string) error

	// List returns the key names stored under service.
	List(service string) ([]string, error)
}
