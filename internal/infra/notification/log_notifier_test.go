package notification

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"tenantauth/config"
	"tenantauth/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	notice := &service.ResetNotice{
		AccountID: "5f0c1e0e-7d4f-4b43-9d8c-2a4f1f2d3c11",
		Email:     "owner@acme.test",
		Link:      "https://app.acme.test/reset?token=abc123",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}

	tests := []struct {
		name     string
		debug    bool
		wantLink bool
	}{
		{name: "production hides link", debug: false},
		{name: "debug shows link", debug: true, wantLink: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			notifier := NewLogNotifier(Params{
				Config: &config.Config{Env: config.EnvConfig{Debug: tt.debug}},
				Logger: slog.New(slog.NewTextHandler(&buf, nil)),
			})

			require.NoError(t, notifier.NotifyPasswordReset(context.Background(), notice))

			out := buf.String()
			assert.Contains(t, out, "o***@acme.test")
			assert.NotContains(t, out, "owner@acme.test")
			if tt.wantLink {
				assert.Contains(t, out, "token=abc123")
			} else {
				assert.NotContains(t, out, "abc123")
			}
		})
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@b.test", maskEmail("alice@b.test"))
	assert.Equal(t, "***", maskEmail("not-an-email"))
	assert.Equal(t, "***", maskEmail("@b.test"))
}
