package payload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/model"
)

const testCID = "bafkreigdvoh7cnza5cwzar65hfdgwpejotszfqx2ha6uuolaofgk54ge6i"

var fastRetry = RetryConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxElapsedTime:  200 * time.Millisecond,
}

func gateway(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNoPayloadShortCircuits(t *testing.T) {
	srv, hits := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	r := NewResolver(NewIPFSFetcher(srv.Client(), []string{srv.URL}, nil), NewHTTPSFetcher(srv.Client(), fastRetry, nil), nil)

	for _, uri := range []string{"", "  ", "ipfs://null", "IPFS://NULL"} {
		body, err := r.Fetch(context.Background(), uri)
		require.NoError(t, err, uri)
		assert.Nil(t, body, uri)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestIPFSGatewayOrder(t *testing.T) {
	bad, badHits := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	good, goodHits := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/"+testCID, r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	f := NewIPFSFetcher(nil, []string{bad.URL + "/", good.URL}, nil)
	body, err := f.FetchCID(context.Background(), testCID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(1), badHits.Load())
	assert.Equal(t, int32(1), goodHits.Load())
}

func TestIPFSRejectsHTML(t *testing.T) {
	srv, _ := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>gateway timeout</body></html>"))
	})
	f := NewIPFSFetcher(srv.Client(), []string{srv.URL}, nil)
	_, err := f.FetchCID(context.Background(), testCID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text/html")
}

func TestHTTPSRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv, _ := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[1,2,3]`))
	})
	f := NewHTTPSFetcher(srv.Client(), fastRetry, nil)
	body, err := f.FetchURL(context.Background(), srv.URL+"/list.json")
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSNotFoundIsPermanent(t *testing.T) {
	srv, hits := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	f := NewHTTPSFetcher(srv.Client(), fastRetry, nil)
	_, err := f.FetchURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolverFallsBackToCID(t *testing.T) {
	ipfs, ipfsHits := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/"+testCID) {
			_, _ = w.Write([]byte(`{"tree":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	r := NewResolver(NewIPFSFetcher(ipfs.Client(), []string{ipfs.URL}, nil), nil, nil)

	body, err := r.Fetch(context.Background(), testCID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tree":[]}`, string(body))
	assert.Equal(t, int32(1), ipfsHits.Load())

	body, err = r.Fetch(context.Background(), "ipfs://"+testCID)
	require.NoError(t, err)
	assert.NotNil(t, body)
	assert.Equal(t, int32(2), ipfsHits.Load(), "same cid must not be fetched twice")
}

func TestResolverHTTPSThenFallback(t *testing.T) {
	origin, originHits := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	ipfs, _ := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/"+testCID) {
			_, _ = w.Write([]byte(`{"from":"ipfs"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	// The origin serves an /ipfs/ path, so the fallback extracts the CID.
	https := NewHTTPSFetcher(origin.Client(), fastRetry, nil)
	https.client = &http.Client{Transport: rewriteToHTTP{}}
	r := NewResolver(NewIPFSFetcher(ipfs.Client(), []string{ipfs.URL}, nil), https, nil)

	uri := "https://" + strings.TrimPrefix(origin.URL, "http://") + "/ipfs/" + testCID
	body, err := r.Fetch(context.Background(), uri)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"ipfs"}`, string(body))
	assert.Equal(t, int32(1), originHits.Load())
}

func TestResolverExhaustedIsFetchError(t *testing.T) {
	ipfs, _ := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r := NewResolver(NewIPFSFetcher(ipfs.Client(), []string{ipfs.URL}, nil), nil, nil)

	_, err := r.Fetch(context.Background(), "ipfs://"+testCID)
	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ipfs://"+testCID, fe.URI)
	assert.ErrorIs(t, err, ErrNotFound)
}

func limitPayload(t *testing.T, n int64) {
	t.Helper()
	prev := maxPayloadSize
	maxPayloadSize = n
	t.Cleanup(func() { maxPayloadSize = prev })
}

func TestOversizedPayloadIsFetchError(t *testing.T) {
	limitPayload(t, 16)
	ipfs, _ := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"far too long for the limit"}`))
	})
	r := NewResolver(NewIPFSFetcher(ipfs.Client(), []string{ipfs.URL}, nil), nil, nil)

	body, err := r.Fetch(context.Background(), "ipfs://"+testCID)
	assert.Nil(t, body)
	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrTooLarge)
	var te *model.TreeError
	assert.False(t, errors.As(err, &te))
}

func TestPayloadAtLimitIsRead(t *testing.T) {
	limitPayload(t, 16)
	doc := `{"a":"12345678"}`
	require.Len(t, doc, 16)
	srv, _ := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(doc))
	})
	f := NewIPFSFetcher(srv.Client(), []string{srv.URL}, nil)
	body, err := f.FetchCID(context.Background(), testCID)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(body))
}

func TestHTTPSOversizedIsPermanent(t *testing.T) {
	limitPayload(t, 16)
	srv, hits := gateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	f := NewHTTPSFetcher(srv.Client(), fastRetry, nil)
	_, err := f.FetchURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int32(1), hits.Load())
}

// rewriteToHTTP lets an https:// URI reach a plain httptest server.
type rewriteToHTTP struct{}

func (rewriteToHTTP) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	return http.DefaultTransport.RoundTrip(clone)
}
