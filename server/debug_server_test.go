package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/INLOpen/sbr/config"
	"github.com/INLOpen/sbr/utils/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestDebugServer_Endpoints(t *testing.T) {
	cfg := config.Default().Debug
	s, err := NewDebugServer(cfg, nil)
	require.NoError(t, err)

	rr := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "memstats")

	rr = get(t, s.Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, s.Handler(), "/debug/statsviz/")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDebugServer_DisabledEndpoints(t *testing.T) {
	s, err := NewDebugServer(config.DebugConfig{MetricsEnabled: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/debug/pprof/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/debug/statsviz/").Code)
}

func TestDebugServer_StartStop(t *testing.T) {
	s, err := NewDebugServer(config.DebugConfig{ListenAddress: "127.0.0.1:0", MetricsEnabled: true}, nil)
	require.NoError(t, err)

	addr, err := s.Listen()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	s.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSystemCollector_Collect(t *testing.T) {
	sc := NewSystemCollector(SystemCollectorOptions{DiskPath: t.TempDir()})
	sc.Collect()

	assert.Equal(t, int64(1), sc.Collections())
	assert.Positive(t, sc.DiskFreeBytes())
	assert.GreaterOrEqual(t, sc.DiskUsagePercent(), 0.0)
	assert.LessOrEqual(t, sc.DiskUsagePercent(), 100.0)
}

func TestSystemCollector_Loop(t *testing.T) {
	mc := clock.NewMockClock(time.Unix(0, 0))
	sc := NewSystemCollector(SystemCollectorOptions{DiskPath: t.TempDir(), Interval: time.Second, Clock: mc})
	sc.Start()

	mc.Advance(time.Second)
	require.Eventually(t, func() bool { return sc.Collections() >= 1 }, 5*time.Second, 10*time.Millisecond)

	sc.Stop()
	sc.Stop()
}
