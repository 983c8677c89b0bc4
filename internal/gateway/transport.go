package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes bounds what is read back from the gateway per attempt.
const maxBodyBytes = 4 << 10

type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what one attempt produced. Err is set for transport failures,
// in which case Status is zero.
type Response struct {
	Status int
	Body   string
	Err    error
}

// Transport performs a single HTTP exchange. It is the seam tests replace.
type Transport interface {
	Do(ctx context.Context, req Request) Response
}

// HTTPTransport is the net/http Transport.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) Response {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}

	resp, err := t.Client.Do(hr)
	if err != nil {
		return Response{Err: err}
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return Response{Status: resp.StatusCode, Body: string(b)}
}
