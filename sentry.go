package statsdecoder

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const SentryFlushTimeout = 10 * time.Second

// ConsumePanic is intended to be called inside a deferred function when recovering
// from a panic. It accepts the value of recover() as its only argument,
// and reports the panic to Sentry, prints the stack, and then repanics (to ensure your program terminates)
func ConsumePanic(hostname string, err interface{}) {
	if err == nil {
		return
	}

	if sentry.CurrentHub().Client() != nil {
		event := sentry.NewEvent()
		event.Level = sentry.LevelFatal
		event.ServerName = hostname
		event.Message = panicMessage(err)
		event.Exception = []sentry.Exception{{
			Type:       "panic",
			Value:      event.Message,
			Stacktrace: sentry.NewStacktrace(),
		}}

		sentry.CaptureEvent(event)
		// we don't want the program to terminate before reporting to sentry
		sentry.Flush(SentryFlushTimeout)
	}

	panic(err)
}

func panicMessage(err interface{}) string {
	switch e := err.(type) {
	case error:
		return e.Error()
	case fmt.Stringer:
		return e.String()
	default:
		return fmt.Sprintf("%#v", e)
	}
}

// sentryHook is a logrus hook that sends error, fatal and panic entries to
// Sentry.
type sentryHook struct {
	hostname string
	lv       []logrus.Level
}

var _ logrus.Hook = sentryHook{}

func newSentryHook(hostname string) sentryHook {
	return sentryHook{
		hostname: hostname,
		lv: []logrus.Level{
			logrus.ErrorLevel,
			logrus.FatalLevel,
			logrus.PanicLevel,
		},
	}
}

func (s sentryHook) Levels() []logrus.Level {
	return s.lv
}

func (s sentryHook) Fire(e *logrus.Entry) error {
	event := sentry.NewEvent()
	event.ServerName = s.hostname
	event.Message = e.Message
	if err, ok := e.Data[logrus.ErrorKey].(error); ok {
		event.Message = err.Error()
	}

	switch e.Level {
	case logrus.FatalLevel, logrus.PanicLevel:
		event.Level = sentry.LevelFatal
	default:
		event.Level = sentry.LevelError
	}

	for key, value := range e.Data {
		if key == logrus.ErrorKey {
			continue
		}
		event.Extra[key] = value
	}

	sentry.CaptureEvent(event)

	if e.Level == logrus.FatalLevel || e.Level == logrus.PanicLevel {
		// the process is about to exit
		sentry.Flush(SentryFlushTimeout)
	}
	return nil
}
