package woz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"valora_backend/platform/logger"
)

// newLoket serves a home page plus a suggest and valuation endpoint and
// records the suggest queries it sees.
func newLoket(t *testing.T, suggestQueries *[]string, detailCalls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			fmt.Fprint(w, "<html></html>")
		case strings.HasSuffix(r.URL.Path, "/suggest"):
			*suggestQueries = append(*suggestQueries, r.URL.Query().Get("q"))
			fmt.Fprint(w, `{"docs":[{"adresseerbaarObjectId":363010000543210}]}`)
		case strings.Contains(r.URL.Path, "/wozwaarde/nummeraanduiding/363010000543210"):
			*detailCalls++
			fmt.Fprint(w, `{"wozWaarden":[
				{"peildatum":"2023-01-01","vastgesteldeWaarde":465000},
				{"peildatum":"2024-01-01","vastgesteldeWaarde":512000},
				{"peildatum":"2022-01-01","vastgesteldeWaarde":430000}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(logger.New("test"))
	c.homeURL = srv.URL + "/"
	c.apiBase = srv.URL
	return c
}

func TestGet_LatestValuation(t *testing.T) {
	var queries []string
	var detailCalls int
	srv := newLoket(t, &queries, &detailCalls)
	defer srv.Close()

	c := newTestClient(srv)
	got, err := c.Get(context.Background(), "Damrak", 1, "A", "Amsterdam", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a valuation")
	}
	if got.Value != 512000 {
		t.Fatalf("Value = %d, want latest reference date's 512000", got.Value)
	}
	if !got.ReferenceDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ReferenceDate = %v", got.ReferenceDate)
	}
	if len(queries) != 1 || queries[0] != "Amsterdam Damrak 1A" {
		t.Fatalf("suggest queries = %v", queries)
	}
}

func TestGet_CachedPerAddress(t *testing.T) {
	var queries []string
	var detailCalls int
	srv := newLoket(t, &queries, &detailCalls)
	defer srv.Close()

	c := newTestClient(srv)
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "Damrak", 1, "", "Amsterdam", ""); err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
	}
	if detailCalls != 1 {
		t.Fatalf("valuation fetched %d times, want 1", detailCalls)
	}
}

func TestGet_KnownObjectIDSkipsSuggest(t *testing.T) {
	var queries []string
	var detailCalls int
	srv := newLoket(t, &queries, &detailCalls)
	defer srv.Close()

	c := newTestClient(srv)
	got, err := c.Get(context.Background(), "Damrak", 1, "", "Amsterdam", "363010000543210")
	if err != nil || got == nil {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if len(queries) != 0 {
		t.Fatalf("suggest called %d times, want 0", len(queries))
	}
}

func TestGet_NoMatchReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/suggest") {
			fmt.Fprint(w, `{"docs":[]}`)
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	c := newTestClient(srv)
	got, err := c.Get(context.Background(), "Nergensstraat", 99, "", "Nergenshuizen", "")
	if err != nil || got != nil {
		t.Fatalf("Get = %+v, %v; want nil, nil", got, err)
	}
}
