// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStorePatternInsertSchemaMismatch Code = "store.pattern.insert.schema_mismatch"
	CodeStorePatternInsertInvalidInput   Code = "store.pattern.insert.invalid_input"
	CodeStorePatternInsertConflict       Code = "store.pattern.insert.conflict"
	CodeStorePatternSearchInvalidInput   Code = "store.pattern.search.invalid_input"
	CodeStoreOpenSchemaMismatch          Code = "store.open.schema_mismatch"
	CodeStoreDatabaseFailure             Code = "store.database.failure"
	CodeStoreBackendUnsupported          Code = "store.backend.unsupported"
	CodeStoreConfigInvalid               Code = "store.config.invalid_input"

	CodeEmbeddingModelLoadFailure     Code = "embedding.model.load.failure"
	CodeEmbeddingInputInvalid         Code = "embedding.input.invalid_input"
	CodeEmbeddingResponseSchema       Code = "embedding.response.schema_mismatch"
	CodeEmbeddingUpstreamFailure      Code = "embedding.upstream.failure"
	CodeEmbeddingProviderUnsupported  Code = "embedding.provider.unsupported"
	CodeEmbeddingSimilarityInvalidArg Code = "embedding.similarity.invalid_input"

	CodeRAGRequestInvalid          Code = "rag.request.invalid"
	CodeRAGGenerateUpstreamFailure Code = "rag.generate.upstream.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderInvalidModelRef Code = "provider.routing.model_ref.invalid"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderAllUnavailable  Code = "provider.routing.upstream.failure"
	CodeProviderKeyInvalid      Code = "provider.key.invalid"
	CodeProviderKeyCheckFailed  Code = "provider.key.check.failure"

	CodeSeedParseInvalidFormat Code = "seed.parse.invalid_format"
	CodeSeedApplyFailure       Code = "seed.apply.failure"

	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretNotFound       Code = "secret.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeScannerRuleInvalid     Code = "scanner.rule.invalid_input"
	CodeScannerStageInvalid    Code = "scanner.stage.invalid_input"
	CodeScannerPatternRejected Code = "scanner.pattern.invalid_input"
	CodeScannerOutputBlocked   Code = "scanner.output.blocked"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
	CodeCLIServerNotRunning Code = "cli.server.not_running"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPatternID(value string) Attr {
	return Field("pattern_id", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

// IsSchemaMismatch reports a vector whose width does not match the index.
func IsSchemaMismatch(err error) bool {
	return reason(CodeOf(err)) == "schema_mismatch"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsBlocked reports content refused by the scanner.
func IsBlocked(err error) bool {
	return reason(CodeOf(err)) == "blocked"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err), IsSchemaMismatch(err):
		return http.StatusBadRequest
	case IsBlocked(err):
		return http.StatusUnprocessableEntity
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
