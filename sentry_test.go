package statsdecoder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSentryTransport struct {
	mtx    sync.Mutex
	events []*sentry.Event
}

func (t *fakeSentryTransport) Configure(sentry.ClientOptions) {}

func (t *fakeSentryTransport) SendEvent(event *sentry.Event) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.events = append(t.events, event)
}

func (t *fakeSentryTransport) Flush(time.Duration) bool {
	return true
}

func (t *fakeSentryTransport) Events() []*sentry.Event {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func bindFakeSentry(t *testing.T) *fakeSentryTransport {
	transport := &fakeSentryTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)

	hub := sentry.CurrentHub()
	hub.BindClient(client)
	t.Cleanup(func() {
		hub.BindClient(nil)
	})
	return transport
}

// returns the result of calling recover() after ConsumePanic()
func consumeAndCatchPanic(hostname string, value interface{}) (result interface{}) {
	defer func() {
		result = recover()
	}()
	ConsumePanic(hostname, value)
	return
}

func TestConsumePanicWithoutSentry(t *testing.T) {
	// does nothing
	ConsumePanic("decoder-1", nil)

	recovered := consumeAndCatchPanic("decoder-1", "panic")
	assert.Equal(t, "panic", recovered)
}

func TestConsumePanicWithSentry(t *testing.T) {
	transport := bindFakeSentry(t)

	ConsumePanic("decoder-1", nil)
	assert.Empty(t, transport.Events(), "ConsumePanic(nil) should not send data")

	recovered := consumeAndCatchPanic("decoder-1", errors.New("worker exploded"))
	assert.EqualError(t, recovered.(error), "worker exploded")

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "worker exploded", events[0].Message)
	assert.Equal(t, "decoder-1", events[0].ServerName)
	assert.Equal(t, sentry.LevelFatal, events[0].Level)
	require.Len(t, events[0].Exception, 1)
	assert.Equal(t, "panic", events[0].Exception[0].Type)
}

func TestPanicMessage(t *testing.T) {
	assert.Equal(t, "boom", panicMessage(errors.New("boom")))
	assert.Equal(t, "127.0.0.1:8125", panicMessage(stringer("127.0.0.1:8125")))
	assert.Equal(t, `"plain"`, panicMessage("plain"))
	assert.Equal(t, "42", panicMessage(42))
}

type stringer string

func (s stringer) String() string {
	return string(s)
}

func TestSentryHook(t *testing.T) {
	transport := bindFakeSentry(t)
	hook := newSentryHook("decoder-1")
	assert.ElementsMatch(t, []logrus.Level{
		logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel,
	}, hook.Levels())

	// entry without any fields
	entry := &logrus.Entry{
		Level:   logrus.FatalLevel,
		Time:    time.Now(),
		Message: "could not bind socket",
		Data:    logrus.Fields{},
	}
	require.NoError(t, hook.Fire(entry))

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "could not bind socket", events[0].Message)
	assert.Equal(t, sentry.LevelFatal, events[0].Level)
	assert.Empty(t, events[0].Extra)

	// the error replaces the message and is not repeated as an extra
	entry.Level = logrus.ErrorLevel
	entry.Data = logrus.Fields{
		logrus.ErrorKey: errors.New("address already in use"),
		"address":       "udp://127.0.0.1:8125",
	}
	require.NoError(t, hook.Fire(entry))

	events = transport.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "address already in use", events[1].Message)
	assert.Equal(t, sentry.LevelError, events[1].Level)
	assert.Equal(t, map[string]interface{}{
		"address": "udp://127.0.0.1:8125",
	}, events[1].Extra)
}
