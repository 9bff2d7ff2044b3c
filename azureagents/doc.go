// Copyright (c) Microsoft. All rights reserved.

// Package azureagents provides an [agents.Service] implementation for the
// Azure AI Foundry Agents REST API.
//
// Create a client with a project endpoint and an Azure credential, then hand
// it to [agents.NewManager]:
//
//	cred, err := azidentity.NewDefaultAzureCredential(nil)
//	if err != nil {
//	    return err
//	}
//	client, err := azureagents.New(os.Getenv("PROJECT_ENDPOINT"), cred)
//	if err != nil {
//	    return err
//	}
//	mgr := agents.NewManager(client, agents.WithModel("gpt-4o"))
//
// MCP servers are declared as "mcp" tools on the agent; their approval
// policy and headers are sent as run tool resources.
//
// # Configuration
//
//   - [WithAPIVersion]: override the api-version query parameter
//   - [WithScope]: override the token scope
//   - [WithHTTPClient]: provide a custom http.Client
//   - [WithHeaders]: add custom headers to every request
//
// # Errors
//
// Non-2xx responses are returned as [*ServiceError] wrapping [ErrAuth],
// [ErrNotFound], [ErrInvalidRequest], [ErrRateLimited] or [ErrService].
//
// # Testing
//
// Provide a mock http.Client via [WithHTTPClient] with a custom
// RoundTripper.
package azureagents
