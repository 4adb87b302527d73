package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/hansbyte/pairgate"
	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/internal/client/clienttest"
	"github.com/hansbyte/pairgate/internal/config"
	"github.com/hansbyte/pairgate/internal/export"
	"github.com/hansbyte/pairgate/internal/server"
	"github.com/hansbyte/pairgate/internal/session"
	"github.com/hansbyte/pairgate/pkg/api"

	_ "gocloud.dev/blob/memblob"
)

type testServerEnv struct {
	Server *server.Server
	Router *gin.Engine
	Orc    *session.Orchestrator
	Driver *clienttest.Driver
	Hub    *session.Hub
	Config *config.Config
}

const (
	testPairDelay      = 25 * time.Millisecond
	testStabilizeDelay = 25 * time.Millisecond
	testMaxRetries     = 2
	testWait           = 3 * time.Second
)

func TestPairingCodeEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.get("/code?number=15551234567")
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.CodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ABCD-1234", res.Code)

	clients := env.Driver.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, []string{"15551234567"}, clients[0].PairingRequests())
}

func TestPairEndpointAlias(t *testing.T) {
	env := testServer(t)

	w := env.get("/pair?number=15559876543")
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.CodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ABCD-1234", res.Code)
}

func TestDefaultNumberFallback(t *testing.T) {
	env := testServer(t)
	env.Config.DefaultNumber = "+1-555-000-2222"

	w := env.get("/code")
	assert.Equal(t, http.StatusOK, w.Code)

	clients := env.Driver.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, []string{"15550002222"}, clients[0].PairingRequests())
}

func TestLoggedOutResponse(t *testing.T) {
	env := testServer(t)
	env.driveClient(func(cli *clienttest.Client) {
		cli.EmitClosed(closeReason(http.StatusUnauthorized))
	})

	w := env.get("/code?number=15551234567")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t,
		"Logged out or unauthorized. New pairing required.", res.Message)
}

func TestRetriesExhaustedResponse(t *testing.T) {
	env := testServer(t)

	go func() {
		for range testMaxRetries {
			cli, ok := env.Driver.WaitForClient(testWait)
			if !ok || !cli.WaitForConnect(testWait) {
				return
			}
			cli.EmitClosed(closeReason(http.StatusRequestTimeout))
		}
	}()

	w := env.get("/code?number=15551234567")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Unable to reconnect after multiple attempts", res.Message)
	assert.Len(t, env.Driver.Clients(), testMaxRetries)
}

func TestMissingCredentialsResponse(t *testing.T) {
	env := testServerWith(t, registeredFactory)
	env.driveClient(func(cli *clienttest.Client) {
		cli.EmitOpen()
	})

	w := env.get("/code?number=15553334444")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "No credentials file", res.Message)

	// the directory survives for inspection on this failure
	assert.DirExists(t, env.Orc.Dir("15553334444"))
}

func TestAlreadyPairedResponse(t *testing.T) {
	env := testServerWith(t, registeredFactory)
	env.driveClient(func(cli *clienttest.Client) {
		cli.EmitCredentials()
		cli.EmitOpen()
	})

	w := env.get("/code?number=15553334444")
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Session already paired; credentials exported", res.Message)
}

func TestPairingRequestFailureResponse(t *testing.T) {
	env := testServerWith(t, func(next client.Factory) client.Factory {
		return func(cfg client.Config) (client.Client, error) {
			cli, err := next(cfg)
			if err != nil {
				return nil, err
			}
			cli.(*clienttest.Client).SetPairingError(
				errors.New("stream error"))
			return cli, nil
		}
	})

	w := env.get("/code?number=15551234567")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Failed to request pairing code", res.Message)
	assert.Contains(t, res.Error, "stream error")
}

func TestExportFailureResponse(t *testing.T) {
	env := testServerWith(t, func(next client.Factory) client.Factory {
		return func(cfg client.Config) (client.Client, error) {
			cfg.State.Registered = true
			cli, err := next(cfg)
			if err != nil {
				return nil, err
			}
			cli.(*clienttest.Client).SetSendError(
				errors.New("stream closed"))
			return cli, nil
		}
	})
	env.driveClient(func(cli *clienttest.Client) {
		cli.EmitCredentials()
		cli.EmitOpen()
	})

	w := env.get("/code?number=15553334444")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Failed to export credentials", res.Message)
	assert.Contains(t, res.Error, "stream closed")
}

func TestClientInitFailureResponse(t *testing.T) {
	env := testServer(t)
	env.Driver.SetCreateError(errors.New("driver unavailable"))

	w := env.get("/code?number=15551234567")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res api.InitErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "client_init_failed", res.Code)
	assert.Contains(t, res.Error, "driver unavailable")
}

func TestConcurrentSessionConflict(t *testing.T) {
	env := testServer(t)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- env.get("/code?number=15557654321")
	}()

	cli, ok := env.Driver.WaitForClient(testWait)
	require.True(t, ok)
	require.True(t, cli.WaitForConnect(testWait))

	var w *httptest.ResponseRecorder
	select {
	case w = <-first:
	case <-time.After(testWait):
		t.Fatal("timed out waiting for the pairing code response")
	}
	assert.Equal(t, http.StatusOK, w.Code)

	// the code was issued but the session is still running, so a second
	// request for the same number is rejected
	w = env.get("/code?number=15557654321")
	assert.Equal(t, http.StatusConflict, w.Code)

	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t,
		"A pairing session for this number is in progress", res.Message)

	cli.EmitClosed(closeReason(http.StatusUnauthorized))
	assert.Eventually(t, func() bool {
		return env.Orc.ActiveCount() == 0
	}, testWait, 10*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, app.Name, res.Service)
	assert.Equal(t, app.Version, res.Version)
}

func TestIndexPage(t *testing.T) {
	env := testServer(t)

	w := env.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "HANS-BYTE")
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pairgate_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest("OPTIONS", "/code", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func (e *testServerEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// driveClient reacts to the next client the factory builds while a
// pairing request is in flight
func (e *testServerEnv) driveClient(fn func(cli *clienttest.Client)) {
	go func() {
		cli, ok := e.Driver.WaitForClient(testWait)
		if !ok || !cli.WaitForConnect(testWait) {
			return
		}
		fn(cli)
	}()
}

func registeredFactory(next client.Factory) client.Factory {
	return func(cfg client.Config) (client.Client, error) {
		cfg.State.Registered = true
		return next(cfg)
	}
}

func closeReason(status int) string {
	return fmt.Sprintf(`{"error":{"output":{"statusCode":%d}}}`, status)
}

func testServer(t *testing.T) *testServerEnv {
	return testServerWith(t, nil)
}

func testServerWith(
	t *testing.T, wrap func(client.Factory) client.Factory,
) *testServerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()

	uploader, err := export.OpenBucket(
		context.Background(), "mem://", "https://mega.nz/file/")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = uploader.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter, err := export.New(
		uploader, "https://mega.nz/file/", "HANS-BYTE~", logger)
	require.NoError(t, err)

	driver := clienttest.NewDriver()
	factory := client.Factory(driver.Factory)
	if wrap != nil {
		factory = wrap(factory)
	}

	cfg := config.NewDefaultConfig()
	cfg.SessionRoot = root

	hub := session.NewHub()
	orc := session.New(session.Config{
		SessionRoot:    root,
		ClientName:     cfg.ClientName,
		ProtocolDomain: cfg.ProtocolDomain,
		PairDelay:      testPairDelay,
		StabilizeDelay: testStabilizeDelay,
		Retry: api.RetryConfig{
			MaxRetries:  testMaxRetries,
			BackoffMs:   5,
			MaxBackoff:  50,
			BackoffType: api.BackoffTypeFixed,
		},
	}, factory, exporter, hub, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), 2*time.Second)
		defer cancel()
		_ = orc.Shutdown(ctx)
		hub.Close()
	})

	srv := server.NewServer(orc, hub, cfg)
	return &testServerEnv{
		Server: srv,
		Router: srv.SetupRoutes(),
		Orc:    orc,
		Driver: driver,
		Hub:    hub,
		Config: cfg,
	}
}
