// Package payload fetches off-chain documents (claim metadata, allow-list
// trees) referenced by URI from IPFS gateways or HTTPS origins.
package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/metrics"
	"hypercertsIndexer/internal/model"
)

// ErrNotFound reports that a source answered but has no such document.
var ErrNotFound = errors.New("payload not found")

// ErrTooLarge reports a response body over the size limit.
var ErrTooLarge = errors.New("payload too large")

// maxPayloadSize bounds how much of a response body is read.
var maxPayloadSize int64 = 32 << 20

// Fetcher fetches the document behind a URI. A nil slice with a nil error
// means the URI carries no payload.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// IsNoPayload reports whether uri is the empty or null sentinel.
func IsNoPayload(uri string) bool {
	uri = strings.TrimSpace(uri)
	return uri == "" || strings.EqualFold(uri, "ipfs://null")
}

// Resolver tries the configured sources in order: the scheme's own store
// first, then the URI body as an IPFS CID.
type Resolver struct {
	ipfs   *IPFSFetcher
	https  *HTTPSFetcher
	logger *zap.Logger
}

// NewResolver builds a Resolver. Either fetcher may be nil.
func NewResolver(ipfs *IPFSFetcher, https *HTTPSFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{ipfs: ipfs, https: https, logger: logger}
}

type attempt struct {
	source string
	run    func(ctx context.Context) ([]byte, error)
}

// Fetch implements Fetcher. Exhausting every source yields a
// *model.FetchError.
func (r *Resolver) Fetch(ctx context.Context, uri string) ([]byte, error) {
	uri = strings.TrimSpace(uri)
	if IsNoPayload(uri) {
		return nil, nil
	}

	var attempts []attempt
	var tried string
	if cid, ok := cutScheme(uri, "ipfs://"); ok && r.ipfs != nil {
		tried = cid
		attempts = append(attempts, attempt{"ipfs", func(ctx context.Context) ([]byte, error) {
			return r.ipfs.FetchCID(ctx, cid)
		}})
	}
	if strings.HasPrefix(strings.ToLower(uri), "https://") && r.https != nil {
		attempts = append(attempts, attempt{"https", func(ctx context.Context) ([]byte, error) {
			return r.https.FetchURL(ctx, uri)
		}})
	}
	if cid := fallbackCID(uri); cid != "" && cid != tried && r.ipfs != nil {
		attempts = append(attempts, attempt{"fallback", func(ctx context.Context) ([]byte, error) {
			return r.ipfs.FetchCID(ctx, cid)
		}})
	}
	if len(attempts) == 0 {
		return nil, &model.FetchError{URI: uri, Err: fmt.Errorf("no source can serve this uri")}
	}

	var errs []error
	for _, a := range attempts {
		body, err := a.run(ctx)
		if err == nil {
			metrics.PayloadFetches.WithLabelValues(a.source, "ok").Inc()
			return body, nil
		}
		metrics.PayloadFetches.WithLabelValues(a.source, "error").Inc()
		r.logger.Debug("payload source failed",
			zap.String("uri", uri),
			zap.String("source", a.source),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", a.source, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &model.FetchError{URI: uri, Err: errors.Join(errs...)}
}

func cutScheme(uri, scheme string) (string, bool) {
	if len(uri) < len(scheme) || !strings.EqualFold(uri[:len(scheme)], scheme) {
		return "", false
	}
	rest := strings.TrimPrefix(uri[len(scheme):], "ipfs/")
	return rest, rest != ""
}

// fallbackCID extracts what may be a CID from uri: the path after an
// /ipfs/ segment, or the URI without its scheme.
func fallbackCID(uri string) string {
	if idx := strings.Index(uri, "/ipfs/"); idx >= 0 {
		return strings.Trim(uri[idx+len("/ipfs/"):], "/")
	}
	if idx := strings.Index(uri, "://"); idx >= 0 {
		uri = uri[idx+3:]
	}
	uri = strings.Trim(uri, "/")
	if uri == "" || strings.ContainsAny(uri, " \t\n") {
		return ""
	}
	return uri
}

// readBody reads at most maxPayloadSize bytes and fails on anything longer
// rather than returning a truncated document.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxPayloadSize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxPayloadSize)
	}
	return body, nil
}

// checkBody rejects empty bodies and HTML pages served in place of the
// requested document, which gateways return for many error cases.
func checkBody(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if mtype := mimetype.Detect(body); mtype.Is("text/html") {
		return fmt.Errorf("unexpected %s response", mtype.String())
	}
	return nil
}
