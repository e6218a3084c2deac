package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/app"
	"github.com/kilianp07/stbs/config"
	"github.com/kilianp07/stbs/core/rtdb"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/infra/logger"
)

func quietConfig(t *testing.T) *config.Config {
	t.Helper()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	cfg := &config.Config{}
	cfg.Scheduler.TickMS = 10
	cfg.API.Address = "127.0.0.1:0"
	cfg.Logging.Format = "json"
	cfg.Simulator.StepMS = 20
	cfg.Simulator.PressProbability = 1e-9
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func startService(t *testing.T, cfg *config.Config) (*app.Service, *httptest.Server) {
	t.Helper()
	svc, err := app.New(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		assert.NoError(t, <-errCh)
		assert.NoError(t, svc.Close())
	})
	require.Eventually(t, func() bool {
		return svc.Scheduler().State() == scheduler.StateRunning
	}, 2*time.Second, 5*time.Millisecond)
	return svc, srv
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// A held button toggles its LED once and the board follows the process image.
func TestButtonPressTogglesLED(t *testing.T) {
	svc, srv := startService(t, quietConfig(t))
	press := [rtdb.Pins]bool{false, false, true, false}
	svc.Board().Script(press, press, press, [rtdb.Pins]bool{})

	require.Eventually(t, func() bool {
		return svc.Board().LEDs()[2]
	}, 3*time.Second, 10*time.Millisecond)

	var snap rtdb.Snapshot
	getJSON(t, srv.URL+"/api/io", &snap)
	assert.Equal(t, 1, snap.LEDs[2])
	assert.Equal(t, [rtdb.Pins]bool{false, false, true, false}, svc.Board().LEDs())
}

func TestDiagnosticsWhileRunning(t *testing.T) {
	_, srv := startService(t, quietConfig(t))

	var st scheduler.Status
	getJSON(t, srv.URL+"/api/scheduler", &st)
	assert.Equal(t, "running", st.State)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, 2, st.Macrocycle)

	var view []scheduler.TickView
	getJSON(t, srv.URL+"/api/schedule", &view)
	require.Len(t, view, 2)
	assert.Equal(t, []string{"io-sync", "integrity", "toggle"}, view[0].Tasks)
	assert.Equal(t, []string{"io-sync"}, view[1].Tasks)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
