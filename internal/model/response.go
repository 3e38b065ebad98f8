package model

import (
	"encoding/json"
	"mime"
	"net/http"
	"time"
)

// Response represents the outcome of fetching a Request. The full body is
// already read and size-capped by the fetcher, so a Response is a plain
// value with no open connections behind it.
type Response struct {
	// Request is the request that produced this response. Middlewares
	// synthesizing a response on behalf of a request must set it.
	Request *Request `json:"-"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Header contains the HTTP response headers.
	Header http.Header `json:"header,omitempty"`

	// Body is the response body, truncated to the configured size cap.
	Body []byte `json:"body,omitempty"`

	// Elapsed is the wall-clock time the fetch took.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// ContentType returns the media type of the response with any parameters
// (such as charset) stripped. Returns an empty string when the header is
// absent or malformed.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}

// OK reports whether the status code is in the 2xx success range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
