package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cetsp/diario-scraper/pkg/logger"
)

func TestShutdownRunsCleanupsInReverseOrder(t *testing.T) {
	h := New(logger.Nop(), time.Second)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string, err error) CleanupFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}

	h.RegisterNamed("archive", record("archive", nil))
	h.Register(record("cache", errors.New("already closed")))
	h.RegisterNamed("http", record("http", nil))

	assert.Equal(t, 1, h.Shutdown())
	assert.Equal(t, []string{"http", "cache", "archive"}, order)
}

func TestShutdownTimesOut(t *testing.T) {
	h := New(logger.Nop(), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	h.Register(func(ctx context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	assert.Equal(t, 1, h.Shutdown())
	assert.Less(t, time.Since(start), time.Second)
}
