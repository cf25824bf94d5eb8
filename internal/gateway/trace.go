package gateway

import (
	"context"
	"net/http"
	"time"
)

// callTrace records the status of the last HTTP response seen during one
// GenerateContent call. Zero means no response arrived.
type callTrace struct {
	status int
}

type traceKey struct{}

func withTrace(ctx context.Context, trace *callTrace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

type tracingTransport struct {
	next http.RoundTripper
}

func (t *tracingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	if err == nil {
		if trace, ok := r.Context().Value(traceKey{}).(*callTrace); ok {
			trace.status = resp.StatusCode
		}
	}
	return resp, err
}

// tracedClient copies base (or builds a pooled client) and wraps its transport.
func tracedClient(base *http.Client) *http.Client {
	var client http.Client
	if base != nil {
		client = *base
	}

	next := client.Transport
	if next == nil {
		next = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	client.Transport = &tracingTransport{next: next}
	return &client
}
