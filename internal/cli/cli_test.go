package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunReturnsWorkError(t *testing.T) {
	want := errors.New("boom")
	err := Run(context.Background(), "", zerolog.Nop(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestRunServesMetricsWhileWorking(t *testing.T) {
	addr := freeAddr(t)
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := Run(context.Background(), addr, zerolog.Nop(), func(ctx context.Context) error {
			assert.Eventually(t, func() bool {
				resp, err := http.Get("http://" + addr + "/healthz")
				if err != nil {
					return false
				}
				resp.Body.Close()
				return resp.StatusCode == http.StatusOK
			}, 2*time.Second, 20*time.Millisecond)
			return nil
		})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the work finished")
	}
}

func TestRunCancelledByParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, "", zerolog.Nop(), func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUploadNoTarget(t *testing.T) {
	urls, err := Upload(context.Background(), "", "", []string{"a"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, urls)

	_, err = Upload(context.Background(), "gs://bucket", "", []string{"a"}, zerolog.Nop())
	assert.Error(t, err)
}
