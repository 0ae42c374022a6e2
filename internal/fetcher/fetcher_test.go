package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveFetch(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestFetchSuccessFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	obs := &recordingObserver{}
	f := New(Config{Timeout: time.Second}, WithObserver(obs))

	page, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/home", page.FinalURL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, "hello")
	assert.Equal(t, []string{"ok"}, obs.outcomes)
}

func TestFetchDecodesLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>Caf\xe9</p>"))
	}))
	defer srv.Close()

	page, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Body, "Café")
}

func TestFetchFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	f := New(Config{Timeout: 100 * time.Millisecond, MaxBytes: 1024, MaxRedirects: 3})

	tests := map[string]struct {
		url       string
		reason    Reason
		transient bool
	}{
		"non 2xx":        {url: srv.URL + "/missing", reason: ReasonStatus},
		"non html":       {url: srv.URL + "/pdf", reason: ReasonContentType},
		"too large":      {url: srv.URL + "/big", reason: ReasonTooLarge},
		"redirect loop":  {url: srv.URL + "/loop", reason: ReasonRedirects},
		"timeout":        {url: srv.URL + "/slow", reason: ReasonTimeout, transient: true},
		"refused":        {url: closedURL, reason: ReasonConnection, transient: true},
		"invalid scheme": {url: "ftp://acme.test/", reason: ReasonInvalidURL},
		"no host":        {url: "not a url", reason: ReasonInvalidURL},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			page, err := f.Fetch(context.Background(), tt.url)
			require.Error(t, err)
			assert.Nil(t, page)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.reason, fe.Reason)
			assert.Equal(t, tt.transient, fe.Transient())
			assert.NotEmpty(t, fe.Error())
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return fn(r) }

func TestFetchUnknownHostIsPermanent(t *testing.T) {
	f := New(Config{Timeout: time.Second}, WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, &net.DNSError{Err: "no such host", Name: r.URL.Hostname(), IsNotFound: true}
	})))

	_, err := f.Fetch(context.Background(), "https://gone-for-good.test")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonNoSuchHost, fe.Reason)
	assert.False(t, fe.Transient())

	f = New(Config{Timeout: time.Second}, WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, &net.DNSError{Err: "server misbehaving", Name: r.URL.Hostname(), IsTemporary: true}
	})))
	_, err = f.Fetch(context.Background(), "https://flaky-dns.test")
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonConnection, fe.Reason)
	assert.True(t, fe.Transient())
}

func TestFetchTimeoutBoundsHangingServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 150 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	elapsed := time.Since(start)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonTimeout, fe.Reason)
	assert.Less(t, elapsed, time.Second)
}
