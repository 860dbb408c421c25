package telemetry

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	c := &Config{Enabled: true, SampleRatio: 3, OTLP: &OTLPConfig{Endpoint: "localhost:4317"}}
	c.applyDefaults()
	if c.SampleRatio != 1.0 {
		t.Fatalf("sample_ratio = %v, want reset to 1.0", c.SampleRatio)
	}
	if c.Exporter != ExporterStdout {
		t.Fatalf("exporter = %q, want stdout default", c.Exporter)
	}
	if c.OTLP.Timeout != "5s" || c.otlpTimeout() != 5*time.Second {
		t.Fatalf("otlp timeout = %q / %v", c.OTLP.Timeout, c.otlpTimeout())
	}
}

func TestOTLPTimeoutFallsBackOnBadValue(t *testing.T) {
	c := &Config{OTLP: &OTLPConfig{Timeout: "soon"}}
	if c.otlpTimeout() != 5*time.Second {
		t.Fatalf("otlp timeout = %v", c.otlpTimeout())
	}
}
