package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/dialogflow-bridge/internal/config"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, bridgeMetrics := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, bridgeMetrics)

	bridgeMetrics.ObserveInbound("ok", 0.1)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bridge_webhook_inbound_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestBuildHandlerServesRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.png"), []byte("png"), 0o600))

	cfg := &appconfig.Config{
		AIProvider:          appconfig.ProviderBedrock,
		BedrockModelID:      "model",
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		CollaboratorTimeout: time.Second,
		ReplyFormat:         "twiml",
		ButtonMode:          "auto",
		StaticDir:           dir,
	}
	handler, cleanup, err := buildHandler(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	t.Cleanup(cleanup)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "Hello, this is the WhatsApp bot server!", rr.Body.String())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/images/catalog.png", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestBuildHandlerRejectsUnknownFormat(t *testing.T) {
	cfg := &appconfig.Config{
		AIProvider:     appconfig.ProviderBedrock,
		BedrockModelID: "model",
		AWSRegion:      "us-east-1",
		ReplyFormat:    "slack",
	}
	_, _, err := buildHandler(context.Background(), cfg, logging.New("error"))
	assert.Error(t, err)
}
