// Copyright (c) Microsoft. All rights reserved.

package azureagents

import (
	"maps"
	"net/http"
)

const (
	// DefaultAPIVersion is the api-version sent with every request.
	DefaultAPIVersion = "v1"

	// DefaultScope is the token scope for Azure AI Foundry projects.
	DefaultScope = "https://ai.azure.com/.default"
)

// clientConfig holds resolved configuration for the [Client].
type clientConfig struct {
	apiVersion string
	scope      string
	httpClient *http.Client
	headers    map[string]string
}

// Option configures a [Client].
type Option func(*clientConfig)

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *clientConfig) { c.apiVersion = v }
}

// WithScope overrides the scope requested from the credential.
func WithScope(scope string) Option {
	return func(c *clientConfig) { c.scope = scope }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(headers))
		}
		maps.Copy(c.headers, headers)
	}
}
