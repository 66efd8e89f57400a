package payload

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// IPFSFetcher reads content-addressed documents through HTTP gateways,
// trying each gateway in order.
type IPFSFetcher struct {
	client   *http.Client
	gateways []string
	logger   *zap.Logger
}

// NewIPFSFetcher builds an IPFS fetcher. Gateways are base URLs such as
// https://ipfs.io; the /ipfs/<cid> path is appended.
func NewIPFSFetcher(client *http.Client, gateways []string, logger *zap.Logger) *IPFSFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaned := make([]string, 0, len(gateways))
	for _, gw := range gateways {
		gw = strings.TrimRight(strings.TrimSpace(gw), "/")
		if gw != "" {
			cleaned = append(cleaned, gw)
		}
	}
	return &IPFSFetcher{client: client, gateways: cleaned, logger: logger}
}

// FetchCID returns the first acceptable body any gateway serves for cid.
func (f *IPFSFetcher) FetchCID(ctx context.Context, cid string) ([]byte, error) {
	cid = strings.Trim(strings.TrimSpace(cid), "/")
	if cid == "" {
		return nil, fmt.Errorf("empty cid")
	}
	if len(f.gateways) == 0 {
		return nil, fmt.Errorf("no IPFS gateways configured")
	}

	var lastErr error
	for _, gw := range f.gateways {
		url := fmt.Sprintf("%s/ipfs/%s", gw, cid)
		body, err := f.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Debug("ipfs gateway failed", zap.String("url", url), zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("no IPFS gateway served %s: %w", cid, lastErr)
}

func (f *IPFSFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("failed to close response body", zap.Error(err), zap.String("url", url))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := checkBody(body); err != nil {
		return nil, err
	}
	return body, nil
}
