package logger

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBufferRecent(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Add(LogEntry{Message: fmt.Sprint(i)})
	}

	got := buf.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "4", got[2].Message)

	got = buf.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Message)
	assert.Equal(t, uint64(5), buf.Total())
}

func TestLogBufferNotWrapped(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Add(LogEntry{Message: "a"})
	buf.Add(LogEntry{Message: "b"})

	got := buf.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Message)
	assert.Len(t, buf.Recent(0), 2)
}

func TestLogBufferConcurrentAccess(t *testing.T) {
	buf := NewLogBuffer(100)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf.Add(LogEntry{Message: fmt.Sprintf("%d-%d", id, j)})
				_ = buf.Recent(10)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, uint64(1000), buf.Total())
	assert.Len(t, buf.Recent(0), 100)
}

func TestNewWritesToBufferAndFile(t *testing.T) {
	buf := NewLogBuffer(10)
	cfg := Config{File: filepath.Join(t.TempDir(), "sniper.log"), MaxSize: 1}

	log, err := New(cfg, buf)
	require.NoError(t, err)

	log.Named("sniper").Info("Position entered", zap.String("token", "mintA"))
	log.Debug("hidden")
	require.NoError(t, Sync(log))

	got := buf.Recent(0)
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0].Level)
	assert.Equal(t, "sniper", got[0].Logger)
	assert.Equal(t, "Position entered", got[0].Message)
	assert.Equal(t, "mintA", got[0].Fields["token"])
}

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "6EF8...wF6P", ShortenAddress("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"))
	assert.Equal(t, "short", ShortenAddress("short"))
}
