package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTestNotifySendsThroughConfiguredTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "test-notify"); err == nil || !strings.Contains(err.Error(), "ntfy_topic") {
		t.Fatalf("expected unconfigured topic error, got %v", err)
	}

	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Setenv("ARCHFLOW_NTFY_TOPIC", server.URL)

	out := env.mustRun(t, "test-notify")
	requireContains(t, out, "Test notification sent")
	if title != "Archflow - Test" {
		t.Fatalf("unexpected notification title %q", title)
	}
}
