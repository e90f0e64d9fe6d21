// Package httpclient builds the HTTP client used to reach the chat API.
//
// [NewClient] returns a client with a pooled transport sized for many
// concurrent sessions against a single host:
//
//	client := httpclient.NewClient(0,
//		httpclient.WithHeaders(map[string]string{"X-Title": "dialogfire"}),
//		httpclient.WithTracePropagation(true),
//	)
//
// The overall client timeout is normally left at zero; per-call deadlines are
// set on the request context by the chat client instead.
package httpclient
