package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"flk-api/internal/config"
	"flk-api/internal/nav"
	"flk-api/internal/testutil"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type navCall struct {
	set, field, value string
}

type fakeNAV struct {
	mu      sync.Mutex
	records []nav.Record
	err     error
	calls   []navCall
}

func (f *fakeNAV) Lookup(_ context.Context, entitySet, field, value string) ([]nav.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, navCall{entitySet, field, value})
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DBDriver:       "sqlite",
		ReportTable:    "flk",
		ItemTable:      "flk_brg",
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 5 << 20,
		NAV: config.NAVConfig{
			SerialEntitySet:   "ServiceItems",
			CustomerEntitySet: "Customers",
		},
	}
}

// newTestServer builds a server over a private in-memory database.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *fakeNAV) {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	logger, _ := test.NewNullLogger()
	fake := &fakeNAV{}
	return NewServer(testutil.NewSQLiteDB(t), cfg, fake, logger), fake
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, s *Server, target string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := do(s, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func postJSON(s *Server, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case string:
		buf.WriteString(v)
	default:
		json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return do(s, req)
}

type testFile struct {
	field       string
	name        string
	contentType string
	content     []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, file *testFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		field := file.field
		if field == "" {
			field = "file"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+file.name+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func jsonUnmarshal(w *httptest.ResponseRecorder, out interface{}) error {
	return json.Unmarshal(w.Body.Bytes(), out)
}
