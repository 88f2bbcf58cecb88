package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

func testProcess(t *testing.T, buf *bytes.Buffer) (*Process, *int) {
	t.Helper()
	p := newProcess("cron-worker", &config.Config{App: config.AppConfig{Env: "dev"}})
	p.Logger = logger.New(logger.Options{ServiceName: "cron-worker", Output: buf})
	code := -1
	p.exit = func(c int) { code = c }
	return p, &code
}

func TestNewProcessStampsServiceKind(t *testing.T) {
	p := newProcess("worker", &config.Config{})
	assert.Equal(t, "worker", p.Config.Service.Kind)
	assert.NotNil(t, p.Logger)
}

func TestCloseRunsNewestFirstAndLogsFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	p, _ := testProcess(t, buf)

	var order []string
	p.OnClose("database", func() error { order = append(order, "database"); return nil })
	p.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("conn reset") })

	p.Close()
	assert.Equal(t, []string{"redis", "database"}, order)
	assert.Contains(t, buf.String(), "error closing redis")

	p.Close()
	assert.Len(t, order, 2, "closers run once")
}

func TestFatalClosesThenExits(t *testing.T) {
	buf := &bytes.Buffer{}
	p, code := testProcess(t, buf)

	closed := false
	p.OnClose("database", func() error { closed = true; return nil })

	p.Fatal(context.Background(), "failed to bootstrap redis", errors.New("dial tcp"))
	require.Equal(t, 1, *code)
	assert.True(t, closed)
	assert.Contains(t, buf.String(), "failed to bootstrap redis")
}

func TestSignalContextCarriesProcessFields(t *testing.T) {
	buf := &bytes.Buffer{}
	p, _ := testProcess(t, buf)
	t.Setenv("BINTRACK_INSTANCE_ID", "cron-a")

	ctx, stop := p.SignalContext()
	defer stop()
	p.Logger.Info(ctx, "starting")

	assert.Contains(t, buf.String(), `"service_kind":"cron-worker"`)
	assert.Contains(t, buf.String(), `"instance":"cron-a"`)
}
