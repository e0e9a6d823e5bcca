package observability

import (
	"context"
	"testing"

	"github.com/riskibarqy/live-links/internal/config"
	"github.com/riskibarqy/live-links/internal/platform/logging"
)

func TestInitUptrace_Disabled(t *testing.T) {
	base := logging.NewNop()
	cfg := config.Config{
		UptraceEnabled: false,
		ServiceName:    "live-links-api",
		ServiceVersion: "dev",
		AppEnv:         config.EnvDev,
	}

	logger, shutdown, err := InitUptrace(cfg, base)
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if logger != base {
		t.Fatalf("expected the base logger when uptrace is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}

func TestInitUptrace_EnabledWithoutDSNStaysDisabled(t *testing.T) {
	cfg := config.Config{UptraceEnabled: true, ServiceName: "live-links-api"}

	_, shutdown, err := InitUptrace(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}
