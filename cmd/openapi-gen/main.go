// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/delm/internal/embedding"
	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/server"
	"github.com/sigil-dev/delm/internal/store"
	"github.com/sigil-dev/delm/internal/store/memory"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds a server over an in-memory pipeline and returns the
// OpenAPI document huma derives from the route types. No handler runs.
func generateSpec() ([]byte, error) {
	const dim = 8
	pipeline, err := rag.New(rag.Deps{
		Embedder: embedding.NewHash(dim),
		Index:    memory.New(store.DefaultCollection, dim),
	}, rag.Config{})
	if err != nil {
		return nil, delmerr.Wrap(err, delmerr.CodeCLISetupFailure, "creating pipeline")
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, server.Deps{Pipeline: pipeline})
	if err != nil {
		return nil, delmerr.Wrap(err, delmerr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
