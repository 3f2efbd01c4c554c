// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/zalando/go-keyring"
)

// keysIndexSuffix names the keyring entry holding the JSON list of key names
// for a service. go-keyring cannot enumerate entries on its own.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
type KeyringStore struct {
	mu sync.Mutex // serialises index read-modify-write
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if value == "" {
		return delmerr.New(delmerr.CodeSecretInvalidInput, "secret store: value must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(service, key, value); err != nil {
		return delmerr.Wrapf(err, delmerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		keys = append(keys, key)
		slices.Sort(keys)
		return keys
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", delmerr.Errorf(delmerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", delmerr.Wrapf(err, delmerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return delmerr.Errorf(delmerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return delmerr.Wrapf(err, delmerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, delmerr.New(delmerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	return s.loadIndex(service)
}

func checkRef(op, service, key string) error {
	if service == "" {
		return delmerr.Errorf(delmerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return delmerr.Errorf(delmerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, delmerr.Wrapf(err, delmerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, delmerr.Wrapf(err, delmerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

// updateIndex applies fn to the stored key list. Caller holds s.mu.
func (s *KeyringStore) updateIndex(service string, fn func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = fn(keys)

	indexKey := service + keysIndexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return delmerr.Wrapf(err, delmerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return delmerr.Wrapf(err, delmerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}
