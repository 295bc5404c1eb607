package redis

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantLog string
	}{
		{"default timeouts", ClientConfig{URL: fmt.Sprintf("redis://%s/2", s.Addr())}, `"db":2`},
		{"explicit timeout", ClientConfig{URL: fmt.Sprintf("redis://%s", s.Addr()), Timeout: 2 * time.Second}, `"timeout":2000`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := context.Background()
			client, err := NewClient(ctx, tt.cfg, zerolog.New(&buf))
			if err != nil {
				t.Fatalf("expected client, got error: %v", err)
			}
			defer client.Close()

			if err := client.Ping(ctx).Err(); err != nil {
				t.Fatalf("ping failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Fatalf("expected %s in connection log, got %q", tt.wantLog, buf.String())
			}
		})
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{URL: "://bad-url"}, zerolog.Nop())
	if err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}

func TestNewClientPingFailure(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewClient(context.Background(), ClientConfig{URL: "redis://" + addr, Timeout: time.Second}, zerolog.Nop())
	if err == nil {
		t.Fatalf("expected ping error when server is down")
	}
	if !strings.Contains(err.Error(), addr) {
		t.Fatalf("expected address in error, got %v", err)
	}
}
