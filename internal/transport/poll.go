package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/flagshipsdk/flagship-go/internal/datasource"
)

// HTTPRequester implements datasource.Requester with a plain GET against a
// polling endpoint, honoring a stored ETag for conditional requests.
type HTTPRequester struct {
	client     *http.Client
	url        string
	authHeader string

	etag string
}

// NewHTTPRequester builds a Requester that polls url with the given
// authorization header.
func NewHTTPRequester(client *http.Client, url, authHeader string) *HTTPRequester {
	return &HTTPRequester{client: client, url: url, authHeader: authHeader}
}

func (r *HTTPRequester) Poll(ctx context.Context) (statusCode int, body []byte, permanentErr error, err error) {
	req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if buildErr != nil {
		return 0, nil, nil, buildErr
	}
	req.Header.Set("Authorization", r.authHeader)
	if r.etag != "" {
		req.Header.Set("If-None-Match", r.etag)
	}

	resp, doErr := r.client.Do(req)
	if doErr != nil {
		return 0, nil, nil, doErr
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, nil, nil, nil
	}
	if isPermanentPollStatus(resp.StatusCode) {
		return resp.StatusCode, nil, &pollError{statusCode: resp.StatusCode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil, &pollError{statusCode: resp.StatusCode}
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, nil, nil, readErr
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		r.etag = etag
	}
	return resp.StatusCode, data, nil, nil
}

func isPermanentPollStatus(statusCode int) bool {
	return statusCode == 401 || statusCode == 403 || statusCode == 410
}

type pollError struct {
	statusCode int
}

func (e *pollError) Error() string {
	return http.StatusText(e.statusCode)
}

var _ datasource.Requester = (*HTTPRequester)(nil)
