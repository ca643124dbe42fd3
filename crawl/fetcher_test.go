package crawl

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestFetchDecompressesGzipResponses runs the fetcher against a live server
// that answers with a gzip body. Extractors must receive the plain markup,
// which only works while encoding negotiation stays with the transport.
func TestFetchDecompressesGzipResponses(t *testing.T) {
	page := []byte(`<html><body><div class="productContainer">Wireless Gadget</div></body></html>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		gz := gzip.NewWriter(w)
		gz.Write(page)
		gz.Close()
	}))
	defer srv.Close()

	cfg := testConfig()
	metrics := NewMetrics()
	pool := NewIdentityPool(nil, cfg.IdentityMaxUses, cfg.IdentityErrorBudget, metrics)
	f := NewFetcher(cfg, pool, metrics)

	body, status, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if !bytes.Equal(body, page) {
		t.Fatalf("body was not decompressed, got %q", body)
	}
}
