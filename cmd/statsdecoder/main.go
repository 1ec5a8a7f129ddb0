package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/sinks/blackhole"
	"github.com/stripe/statsdecoder/sinks/debug"
	"github.com/stripe/statsdecoder/sinks/kafka"
	"github.com/stripe/statsdecoder/sinks/localfile"
)

var (
	configFile     = flag.String("f", "", "The config file to read for settings.")
	validateConfig = flag.Bool("validate-config", false, "Validate the config file, then immediately exit.")
)

var metricSinkTypes = statsdecoder.MetricSinkTypes{
	"blackhole": {
		Create:      blackhole.Create,
		ParseConfig: blackhole.ParseConfig,
	},
	"debug": {
		Create:      debug.Create,
		ParseConfig: debug.ParseConfig,
	},
	"kafka": {
		Create:      kafka.CreateMetricSink,
		ParseConfig: kafka.ParseMetricConfig,
	},
	"localfile": {
		Create:      localfile.Create,
		ParseConfig: localfile.ParseConfig,
	},
}

func main() {
	flag.Parse()

	if configFile == nil || *configFile == "" {
		logrus.Fatal("You must specify a config file")
	}

	conf, err := statsdecoder.ReadConfig(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("Error reading config file")
	}
	if *validateConfig {
		os.Exit(0)
	}

	logger := logrus.StandardLogger()
	server, err := statsdecoder.NewFromConfig(statsdecoder.ServerConfig{
		Config:          conf,
		Logger:          logger,
		MetricSinkTypes: metricSinkTypes,
	})
	if err != nil {
		e := err
		if conf.SentryDsn.Value != "" {
			err = sentry.Init(sentry.ClientOptions{
				Dsn: conf.SentryDsn.Value,
			})
			if err != nil {
				logrus.WithError(err).Error("Error initializing Sentry client")
			}

			event := sentry.NewEvent()
			event.Message = e.Error()
			event.ServerName = conf.Hostname

			sentry.CaptureEvent(event)
			sentry.Flush(statsdecoder.SentryFlushTimeout)
		}

		logrus.WithError(e).Fatal("Could not initialize server")
	}

	defer func() {
		statsdecoder.ConsumePanic(server.Hostname, recover())
	}()

	if conf.EnableProfiling {
		defer profile.Start().Stop()
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logrus.WithError(err).Error("Server exited with an error")
		// deferred calls are skipped by os.Exit
		stop()
		os.Exit(1)
	}
}
