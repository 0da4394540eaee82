// Package http provides the HTTP client used to talk to the Drive API.
//
// This package handles:
//   - Connection pooling for parallel downloads
//   - Retry with exponential backoff on transport errors, 5xx and 429
//   - Mapping status codes to sentinel errors with the API error message
//   - Optional transport wrapping for authentication
//
// # Usage
//
//	client := http.NewClient(Options{
//	    MaxIdleConnsPerHost: 100,
//	    Timeout:             30 * time.Second,
//	    RetryAttempts:       5,
//	})
//
//	// Hand the retrying client to the Drive API library
//	svc, err := drive.NewService(ctx, option.WithHTTPClient(client.HTTPClient()))
package http
