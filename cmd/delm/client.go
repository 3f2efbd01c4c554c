// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// defaultHTTPClient is used for calls to a running server and for provider
// key checks. Tests swap it for an httptest client.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// serverClient talks to a running delm HTTP API.
type serverClient struct {
	baseURL string
	http    *http.Client
}

func newServerClient(addr string) *serverClient {
	return &serverClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET and decodes the JSON body into dest. A refused
// connection is reported as cli.server.not_running.
func (c *serverClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return delmerr.New(delmerr.CodeCLIServerNotRunning, "server is not running (connection refused)")
		}
		return delmerr.Errorf(delmerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return delmerr.Errorf(delmerr.CodeCLIRequestFailure, "server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return delmerr.Errorf(delmerr.CodeCLIRequestFailure, "invalid response: %w", err)
	}
	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
