package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// transport is a minimal playback target driven through the dispatcher.
type transport struct {
	mu        sync.Mutex
	campaigns []string
	time      float64
	playing   bool
}

func (tr *transport) seek(e Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, errors.New("seek needs a time")
	}
	t, err := strconv.ParseFloat(e.Args[0], 64)
	if err != nil {
		return nil, err
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.time = t
	return t, nil
}

func (tr *transport) setCampaign(e Event) (any, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.campaigns = append(tr.campaigns, e.Args[0])
	tr.time = 0
	return e.Args[0], nil
}

func (tr *transport) play(Event) (any, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.playing = true
	return true, nil
}

func (tr *transport) loaded() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.campaigns...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, &logs
}

func TestDispatcher_SeekRunsInline(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":SEEK:", tr.seek)

	result, err := d.Dispatch(Event{Command: ":SEEK:", Args: []string{"12.5"}, Source: "http"})
	require.NoError(t, err)
	assert.Equal(t, 12.5, result)
	assert.Equal(t, 12.5, tr.time)

	_, err = d.Dispatch(Event{Command: ":SEEK:", Args: []string{"soon"}})
	assert.Error(t, err)
	assert.Equal(t, 12.5, tr.time)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":REWIND:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), ":REWIND:")
}

func TestDispatcher_BufferedCampaignSwitchesInOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":CAMPAIGN:", tr.setCampaign, Buffered(8))

	for _, id := range []string{"prinitza-1263", "makryplagi-1264", "prinitza-1263"} {
		result, err := d.Dispatch(Event{Command: ":CAMPAIGN:", Args: []string{id}})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	d.Close()
	assert.Equal(t, []string{"prinitza-1263", "makryplagi-1264", "prinitza-1263"}, tr.loaded())

	_, err := d.Dispatch(Event{Command: ":CAMPAIGN:", Args: []string{"late"}})
	assert.ErrorIs(t, err, ErrQueueFull, "closed dispatcher rejects queued commands")
	d.Close()
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":SPEED:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	_, err := d.Dispatch(Event{Command: ":SPEED:", Args: []string{"2"}})
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: ":SPEED:", Args: []string{"4"}})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: ":SPEED:", Args: []string{"8"}})
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Command: ":SPEED:", Args: []string{"16"}})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":CAMPAIGN:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Event{Command: ":CAMPAIGN:", Args: []string{"prinitza-1263"}})
	<-started
	_, _ = d.Dispatch(Event{Command: ":CAMPAIGN:", Args: []string{"makryplagi-1264"}})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Command: ":CAMPAIGN:", Args: []string{"prinitza-1263"}})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume after the queue drained")
	}
}

func TestDispatcher_LoggedCommand(t *testing.T) {
	d, logs := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":SEEK:", tr.seek, Logged())

	_, err := d.Dispatch(Event{Command: ":SEEK:", Args: []string{"4.5"}, Source: "ws"})
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `"msg":"handling command"`)
	assert.Contains(t, out, `"command":":SEEK:"`)
	assert.Contains(t, out, `"source":"ws"`)
	assert.Contains(t, out, `"msg":"command complete"`)
}

func TestDispatcher_LoggedCommandFailure(t *testing.T) {
	d, logs := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":SEEK:", tr.seek, Logged())

	_, err := d.Dispatch(Event{Command: ":SEEK:", Source: "http"})
	require.Error(t, err)

	out := logs.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"msg":"command failed"`)
	assert.Contains(t, out, "seek needs a time")
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":SEEK:", tr.seek)
	d.Register(":PLAY:", tr.play)
	d.Register(":CAMPAIGN:", tr.setCampaign, Buffered(1))

	assert.Equal(t, []string{":CAMPAIGN:", ":PLAY:", ":SEEK:"}, d.Commands())
	assert.True(t, d.HasHandler(":PLAY:"))
	assert.False(t, d.HasHandler(":TOGGLE:"))
}

func TestDispatcher_TimestampDefaulted(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var seen time.Time
	d.Register(":STATUS:", func(e Event) (any, error) {
		seen = e.Timestamp
		return nil, nil
	})

	_, err := d.Dispatch(Event{Command: ":STATUS:"})
	require.NoError(t, err)
	assert.False(t, seen.IsZero())

	at := time.Date(1263, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = d.Dispatch(Event{Command: ":STATUS:", Timestamp: at})
	require.NoError(t, err)
	assert.Equal(t, at, seen)
}

func TestDispatcher_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	d, _ := newTestDispatcher(t)
	tr := &transport{}
	d.Register(":SEEK:", tr.seek)
	d.Register(":PLAY:", tr.play)

	for _, arg := range []string{"1", "2", "3"} {
		_, err := d.Dispatch(Event{Command: ":SEEK:", Args: []string{arg}})
		require.NoError(t, err)
	}
	_, err := d.Dispatch(Event{Command: ":PLAY:"})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	processed := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "player.commands.processed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				cmd, _ := dp.Attributes.Value(attribute.Key("command"))
				processed[cmd.AsString()] = dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{":SEEK:": 3, ":PLAY:": 1}, processed)
}
