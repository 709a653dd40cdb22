package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flk-api/internal/nav"
	"flk-api/internal/testutil"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const navFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <entry>
    <content type="application/xml">
      <m:properties>
        <d:No>SI0001</d:No>
        <d:Serial_No>SN-100</d:Serial_No>
        <d:Customer_No>C0001</d:Customer_No>
        <d:Warranty_Ending_Date m:null="true" />
      </m:properties>
    </content>
  </entry>
</feed>`

func TestNavData(t *testing.T) {
	s, fake := newTestServer(t)
	fake.records = []nav.Record{{"No": "SI0001", "Serial_No": "SN-100"}}

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-100", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[{"No":"SI0001","Serial_No":"SN-100"}]`, w.Body.String())

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data-noseri?field=Name&value=PT%20Maju", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []navCall{
		{"ServiceItems", "Serial_No", "SN-100"},
		{"Customers", "Name", "PT Maju"},
	}, fake.calls)
}

func TestNavDataDefaultsCustomerField(t *testing.T) {
	s, fake := newTestServer(t)
	do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data-noseri?value=C0001", nil))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, navCall{"Customers", "No", "C0001"}, fake.calls[0])
}

func TestNavDataEmptyResult(t *testing.T) {
	s, fake := newTestServer(t)
	fake.records = []nav.Record{}

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=none", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNavDataRequiresValue(t *testing.T) {
	s, fake := newTestServer(t)
	w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?field=Serial_No", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.calls)
}

func TestNavDataErrors(t *testing.T) {
	t.Run("structured nav error", func(t *testing.T) {
		s, fake := newTestServer(t)
		fake.err = &nav.Error{Status: http.StatusBadGateway, Message: "NAV request failed", Details: "dial tcp: connection refused"}

		w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-1", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"status":502,"error":"NAV request failed","details":"dial tcp: connection refused"}`, w.Body.String())
	})

	t.Run("upstream status is forwarded", func(t *testing.T) {
		s, fake := newTestServer(t)
		fake.err = &nav.Error{Status: http.StatusUnauthorized, Message: "NAV returned an error"}

		w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-1", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unexpected error", func(t *testing.T) {
		s, fake := newTestServer(t)
		fake.err = errors.New("boom")

		w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-1", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "boom", decodeBody(t, w)["details"])
	})
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]nav.Record
}

func (c *mapCache) Get(_ context.Context, key string) ([]nav.Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, records []nav.Record, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]nav.Record{}
	}
	c.data[key] = records
	return nil
}

func TestNavDataMetricsSeparateCacheHits(t *testing.T) {
	var hits int32
	odata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(navFeed))
	}))
	defer odata.Close()

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	logger, _ := test.NewNullLogger()

	s, _ := newTestServer(t)
	s.NAV = nav.NewClient(nav.Options{
		BaseURL:   odata.URL,
		Transport: transport,
		Logger:    logger,
		Cache:     &mapCache{},
		CacheTTL:  time.Minute,
		Observer:  s.Metrics,
	})

	for i := 0; i < 3; i++ {
		w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-100", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	w := httptest.NewRecorder()
	s.Metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `nav_requests_total{entity_set="ServiceItems",outcome="ok"} 1`)
	assert.Contains(t, body, `nav_request_duration_seconds_count{entity_set="ServiceItems"} 1`)
	assert.Contains(t, body, `nav_cache_hits_total{entity_set="ServiceItems"} 2`)
}

func TestNewServerObservesNAVClient(t *testing.T) {
	odata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "company not found", http.StatusNotFound)
	}))
	defer odata.Close()

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	logger, _ := test.NewNullLogger()

	client := nav.NewClient(nav.Options{BaseURL: odata.URL, Transport: transport, Logger: logger})
	s := NewServer(testutil.NewSQLiteDB(t), testConfig(t), client, logger)

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data-noseri?value=C1", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `nav_requests_total{entity_set="Customers",outcome="error"} 1`)
}

func TestNavDataAgainstODataFeed(t *testing.T) {
	var gotFilter string
	odata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(navFeed))
	}))
	defer odata.Close()

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	logger, _ := test.NewNullLogger()

	s, _ := newTestServer(t)
	s.NAV = nav.NewClient(nav.Options{
		BaseURL:   odata.URL,
		Timeout:   5 * time.Second,
		Transport: transport,
		Logger:    logger,
	})

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/nav-data?value=SN-100", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Serial_No eq 'SN-100'", gotFilter)
	assert.JSONEq(t, `[{"No":"SI0001","Serial_No":"SN-100","Customer_No":"C0001","Warranty_Ending_Date":null}]`, w.Body.String())
}
