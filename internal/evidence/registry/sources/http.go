// Package sources implements the upstream registry and sanction-list clients.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kycdesk/internal/evidence/registry/providers"
)

const (
	userAgent       = "kycdesk/1.0"
	maxResponseBody = 4 << 20
)

// DefaultHTTPClient is shared by sources that are not given their own client.
// Per-call deadlines come from the caller's context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

type jsonClient struct {
	name    string
	baseURL string
	http    *http.Client
	header  http.Header
	limiter *rate.Limiter
}

func newJSONClient(name, baseURL string, client *http.Client) jsonClient {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return jsonClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		header:  http.Header{},
	}
}

// get issues GET baseURL+path and decodes the JSON body into a generic value.
func (c jsonClient) get(ctx context.Context, path string, query url.Values) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, providers.NewProviderError(providers.ErrorTimeout, c.name, "rate limiter wait aborted", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorInternal, c.name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(err, ctx.Err())
		}
		return nil, providers.FromTransport(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, providers.FromResponse(c.name, resp)
	}

	var body any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, c.name, "undecodable response body", err)
	}
	return body, nil
}

func badData(name, format string, args ...any) error {
	return providers.NewProviderError(providers.ErrorBadData, name, fmt.Sprintf(format, args...), nil)
}

func notFound(name, message string) error {
	return providers.NewProviderError(providers.ErrorNotFound, name, message, nil)
}
