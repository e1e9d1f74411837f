package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"archflow/internal/catalog"
	"archflow/internal/config"
	"archflow/internal/services"
)

func TestHTTPClientFind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("field") != "barcode" || r.URL.Query().Get("value") != "123" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("db") != "nkc" {
			t.Fatalf("expected endpoint query to be preserved, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"r1","title":"Example","metadata":"<mods/>"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.NewHTTPClient("nkc", server.URL+"?db=nkc")
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	records, err := client.Find(context.Background(), "barcode", "123")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" || records[0].Metadata != "<mods/>" {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestHTTPClientErrorsAreIntegrationFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := catalog.NewHTTPClient("nkc", server.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	_, err = client.Find(context.Background(), "barcode", "123")
	if !errors.Is(err, services.ErrIntegration) {
		t.Fatalf("expected integration error, got %v", err)
	}
	if _, err := client.Find(context.Background(), "barcode", " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty value, got %v", err)
	}
}

func TestHTTPClientDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client, err := catalog.NewHTTPClient("slow", server.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Find(ctx, "barcode", "1")
	if !errors.Is(err, services.ErrIntegration) || !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected integration timeout, got %v", err)
	}
}

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := catalog.NewHTTPClient("", "http://example.com"); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := catalog.NewHTTPClient("x", "not a url"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestCachedServesRepeatLookups(t *testing.T) {
	var calls atomic.Int32
	inner := catalog.LookupFunc(func(ctx context.Context, field, value string) ([]catalog.Record, error) {
		calls.Add(1)
		return []catalog.Record{{ID: value}}, nil
	})
	cached := catalog.NewCached("nkc", inner, t.TempDir(), time.Hour)

	for i := 0; i < 3; i++ {
		records, err := cached.Find(context.Background(), "barcode", "42")
		if err != nil || len(records) != 1 || records[0].ID != "42" {
			t.Fatalf("unexpected result %#v %v", records, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls.Load())
	}
	if _, err := cached.Find(context.Background(), "barcode", "43"); err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected distinct keys to miss, got %d calls", calls.Load())
	}
}

func TestCachedExpiresAndSkipsFailures(t *testing.T) {
	var calls atomic.Int32
	fail := atomic.Bool{}
	inner := catalog.LookupFunc(func(ctx context.Context, field, value string) ([]catalog.Record, error) {
		calls.Add(1)
		if fail.Load() {
			return nil, errors.New("down")
		}
		return []catalog.Record{{ID: value}}, nil
	})
	cached := catalog.NewCached("nkc", inner, t.TempDir(), time.Nanosecond)

	fail.Store(true)
	if _, err := cached.Find(context.Background(), "barcode", "1"); err == nil {
		t.Fatal("expected upstream failure to surface")
	}
	fail.Store(false)
	if _, err := cached.Find(context.Background(), "barcode", "1"); err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := cached.Find(context.Background(), "barcode", "1"); err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected expired entry to be refetched, got %d calls", calls.Load())
	}
	if err := cached.Purge(); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}
}

func TestCachedDoesNotRememberMissingRecords(t *testing.T) {
	var calls atomic.Int32
	catalogued := atomic.Bool{}
	inner := catalog.LookupFunc(func(ctx context.Context, field, value string) ([]catalog.Record, error) {
		calls.Add(1)
		if !catalogued.Load() {
			return nil, nil
		}
		return []catalog.Record{{ID: value}}, nil
	})
	cached := catalog.NewCached("nkc", inner, t.TempDir(), time.Hour)

	records, err := cached.Find(context.Background(), "barcode", "2610000001")
	if err != nil || len(records) != 0 {
		t.Fatalf("expected no records, got %#v %v", records, err)
	}
	catalogued.Store(true)
	records, err = cached.Find(context.Background(), "barcode", "2610000001")
	if err != nil || len(records) != 1 {
		t.Fatalf("newly catalogued record should be found, got %#v %v", records, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected the empty answer to miss the cache, got %d calls", calls.Load())
	}
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CatalogCache.Enabled = true
	cfg.CatalogCache.Dir = t.TempDir()
	cfg.Catalogs = []config.Catalog{
		{ID: "nkc", URL: "https://catalog.example/api", Field: "barcode", TimeoutSeconds: 5, CacheTTLSeconds: 60, Required: true},
		{ID: "aleph", URL: "https://aleph.example/api", Field: "signature", TimeoutSeconds: 5},
	}
	reg, err := catalog.FromConfig(&cfg)
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	if ids := reg.IDs(); len(ids) != 2 || ids[0] != "aleph" || ids[1] != "nkc" {
		t.Fatalf("unexpected ids %v", ids)
	}
	nkc, err := reg.Get("nkc")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !nkc.Required || nkc.Field != "barcode" {
		t.Fatalf("unexpected entry %+v", nkc)
	}
	if _, ok := nkc.Lookup.(*catalog.Cached); !ok {
		t.Fatalf("expected cached lookup, got %T", nkc.Lookup)
	}
	aleph, _ := reg.Get("aleph")
	if _, ok := aleph.Lookup.(*catalog.HTTPClient); !ok {
		t.Fatalf("expected plain client without ttl, got %T", aleph.Lookup)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := reg.Register(catalog.Entry{ID: "nkc", Lookup: nkc.Lookup}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}
