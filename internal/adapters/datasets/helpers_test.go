package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"accessionreport/internal/adapters/testutil"
	"accessionreport/internal/core"
)

func newService(t *testing.T) *core.Service {
	t.Helper()
	db, err := testutil.DemoDatabase(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc, err := testutil.NewReportService(db, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func do(t *testing.T, h http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
