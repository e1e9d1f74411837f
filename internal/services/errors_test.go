package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"archflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrIntegration, "catalog", "find", "lookup failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrIntegration) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"catalog", "find", "lookup failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := map[services.Kind]error{
		services.KindValidation:    services.Wrap(services.ErrValidation, "workflow", "update task", "bad state", nil),
		services.KindNotFound:      fmt.Errorf("outer: %w", services.ErrNotFound),
		services.KindConflict:      services.Wrap(services.ErrConflict, "store", "update", "stale", nil),
		services.KindIntegration:   services.ErrTimeout,
		services.KindConfiguration: services.ErrConfiguration,
		services.KindInternal:      errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Classify(err); got != want {
			t.Fatalf("Classify(%v) = %q, want %q", err, got, want)
		}
	}
	if got := services.Classify(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
