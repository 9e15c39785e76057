package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/lysyi3m/listing-comb/app/model"
)

const maxBodySize = 10 << 20

type FetchOptions struct {
	Timeout time.Duration
	Headers map[string]string
}

type FetchResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// Fetcher retrieves one URL. Implementations return a *model.FetchError for
// network failures, timeouts and non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResponse, error)
}

var _ Fetcher = (*HTTPFetcher)(nil)

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request for %s: %v", model.ErrValidation, url, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &model.FetchError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &model.FetchError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	contentType := resp.Header.Get("Content-Type")

	return &FetchResponse{
		Status:      resp.StatusCode,
		Body:        decodeBody(data, contentType),
		ContentType: contentType,
	}, nil
}

// decodeBody converts a response declared in a legacy charset (GBK, Shift_JIS,
// windows-1251, ...) to UTF-8. Unknown charsets are passed through.
func decodeBody(data []byte, contentType string) []byte {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return data
	}

	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return data
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		slog.Debug("Unknown response charset, keeping raw bytes", "charset", charset)
		return data
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		slog.Debug("Failed to decode response body", "charset", charset, "error", err)
		return data
	}
	return decoded
}
