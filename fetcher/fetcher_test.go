package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(cfg Config) *Fetcher {
	cfg.AllowPrivateHosts = true
	return New(cfg, nil)
}

func TestFetch_Success(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Hello</title></head></html>`))
	}))
	defer server.Close()

	page, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, acceptHeader, gotAccept)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, server.URL, page.URL)
	assert.Contains(t, page.HTML, "<title>Hello</title>")
	assert.False(t, page.FetchedAt.IsZero())
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>New</title>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	page, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/old", page.URL)
	assert.Equal(t, server.URL+"/new", page.FinalURL)
}

func TestFetch_TooManyRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(Config{MaxRedirects: 2}).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}

func TestFetch_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "failed to fetch URL: 404 Not Found", err.Error())
}

func TestFetch_NotHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	_, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrNotHTML)
}

func TestFetch_AcceptsXHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xhtml+xml")
		w.Write([]byte("<title>X</title>"))
	}))
	defer server.Close()

	_, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
}

func TestFetch_TooLarge(t *testing.T) {
	t.Run("declared length", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Length", "2048")
			w.Write([]byte(strings.Repeat("a", 2048)))
		}))
		defer server.Close()

		_, err := newTestFetcher(Config{MaxBodyBytes: 1024}).Fetch(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("chunked body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			for i := 0; i < 4; i++ {
				w.Write([]byte(strings.Repeat("b", 512)))
				w.(http.Flusher).Flush()
			}
		}))
		defer server.Close()

		_, err := newTestFetcher(Config{MaxBodyBytes: 1024}).Fetch(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestFetcher(Config{Timeout: 100 * time.Millisecond}).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "request timed out: the website took too long to respond", err.Error())
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	_, err := newTestFetcher(Config{}).Fetch(context.Background(), "ftp://example.com/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestFetch_BlocksPrivateHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer server.Close()

	f := New(Config{}, nil)

	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrBlockedHost)

	_, err = f.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.ErrorIs(t, err, ErrBlockedHost)
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<title>Caf\xe9</title>"))
	}))
	defer server.Close()

	page, err := newTestFetcher(Config{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<title>Café</title>", page.HTML)
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        string
	}{
		{"utf-8 header", "<p>Grüße</p>", "text/html; charset=utf-8", "<p>Grüße</p>"},
		{"undeclared valid utf-8", "<p>日本語</p>", "text/html", "<p>日本語</p>"},
		{"meta charset latin1", "<meta charset=\"iso-8859-1\"><p>na\xefve</p>", "text/html", "<meta charset=\"iso-8859-1\"><p>naïve</p>"},
		{"utf-8 bom stripped", "\xef\xbb\xbf<p>x</p>", "text/html", "<p>x</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeBody([]byte(tt.body), tt.contentType))
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"::1", true},
		{"fd00::1", true},
		{"::ffff:127.0.0.1", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2606:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.private, IsPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestDenyPrivateDial(t *testing.T) {
	assert.ErrorIs(t, denyPrivateDial("tcp", "127.0.0.1:80", nil), ErrBlockedHost)
	assert.ErrorIs(t, denyPrivateDial("tcp", "garbage", nil), ErrBlockedHost)
	assert.NoError(t, denyPrivateDial("tcp", "8.8.8.8:443", nil))
}
