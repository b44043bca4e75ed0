package anyllm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NewHTTPClient returns an HTTP client for [anyllmlib.WithHTTPClient] that
// keeps the backend SDKs to a single attempt per completion. A zero timeout
// means no client-side timeout.
//
// The OpenAI and Anthropic SDKs retry 408, 429 and 5xx responses as well as
// connection errors unless the response carries "x-should-retry: false". The
// transport sets that header on every response and reports connection errors
// as a 502 carrying it. Gemini and Ollama clients do not retry and are
// unaffected.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: singleAttempt{base: http.DefaultTransport},
	}
}

type singleAttempt struct {
	base http.RoundTripper
}

func (t singleAttempt) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, err
		}
		return transportFailure(req, err), nil
	}
	res.Header.Set("X-Should-Retry", "false")
	return res, nil
}

// transportFailure turns a connection error into a non-retryable 502 whose
// body follows the OpenAI error shape, so the SDK surfaces the message.
func transportFailure(req *http.Request, err error) *http.Response {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{
			"message": fmt.Sprintf("transport: %v", err),
			"type":    "connection_error",
		},
	})
	return &http.Response{
		Status:     "502 Bad Gateway",
		StatusCode: http.StatusBadGateway,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type":   {"application/json"},
			"X-Should-Retry": {"false"},
		},
		Body:          io.NopCloser(strings.NewReader(string(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
