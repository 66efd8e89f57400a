package payload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds HTTPS retries.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig is used when a zero RetryConfig is given.
var DefaultRetryConfig = RetryConfig{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	MaxElapsedTime:  30 * time.Second,
}

// HTTPSFetcher reads documents from HTTPS origins. Rate limiting, server
// errors and network failures are retried with exponential backoff.
type HTTPSFetcher struct {
	client *http.Client
	retry  RetryConfig
	logger *zap.Logger
}

// NewHTTPSFetcher builds an HTTPS fetcher.
func NewHTTPSFetcher(client *http.Client, retry RetryConfig, logger *zap.Logger) *HTTPSFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSFetcher{client: client, retry: retry, logger: logger}
}

// FetchURL fetches url.
func (f *HTTPSFetcher) FetchURL(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to perform request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				f.logger.Warn("failed to close response body", zap.Error(err), zap.String("url", url))
			}
		}()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			f.logger.Warn("retryable status, backing off", zap.String("url", url), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status code %d", resp.StatusCode))
		}

		read, err := readBody(resp.Body)
		if errors.Is(err, ErrTooLarge) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		if err := checkBody(read); err != nil {
			return backoff.Permanent(err)
		}
		body = read
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retry.InitialInterval
	b.MaxInterval = f.retry.MaxInterval
	b.MaxElapsedTime = f.retry.MaxElapsedTime
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", err)
	}
	return body, nil
}
