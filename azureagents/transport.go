// Copyright (c) Microsoft. All rights reserved.

package azureagents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// transport sends one authenticated request to the project endpoint and
// returns the response for a 2xx status. Tests swap the http.Client.
type transport interface {
	do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error)
}

type httpTransport struct {
	client     *http.Client
	endpoint   string
	apiVersion string
	scope      string
	headers    map[string]string
	credential azcore.TokenCredential
}

func newHTTPTransport(endpoint string, cred azcore.TokenCredential, cfg *clientConfig) *httpTransport {
	t := &httpTransport{
		client:     cfg.httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: cfg.apiVersion,
		scope:      cfg.scope,
		headers:    cfg.headers,
		credential: cred,
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.apiVersion == "" {
		t.apiVersion = DefaultAPIVersion
	}
	if t.scope == "" {
		t.scope = DefaultScope
	}
	return t
}

func (t *httpTransport) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("api-version", t.apiVersion)

	req, err := http.NewRequestWithContext(ctx, method, t.endpoint+path+"?"+q.Encode(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := t.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{t.scope}})
	if err != nil {
		return nil, fmt.Errorf("%w: get token: %w", ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	slog.DebugContext(ctx, "agent service request", "method", method, "path", path)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// parseErrorResponse maps a failed response to a *ServiceError.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	msg := envelope.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	svcErr := &ServiceError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Code:       envelope.Error.Code,
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		svcErr.Err = ErrAuth
	case http.StatusNotFound:
		svcErr.Err = ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		svcErr.Err = ErrInvalidRequest
	case http.StatusTooManyRequests:
		svcErr.Err = ErrRateLimited
	default:
		svcErr.Err = ErrService
	}

	return svcErr
}
