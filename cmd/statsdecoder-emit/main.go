// statsdecoder-emit sends statsd metrics to a decoder, either through a
// statsd client or as raw lines.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
)

// lineFlag collects every -line flag, in order.
type lineFlag []string

func (l *lineFlag) String() string {
	return strings.Join(*l, "\n")
}

func (l *lineFlag) Set(value string) error {
	*l = append(*l, value)
	return nil
}

var (
	configFile = flag.String("f", "", "The statsdecoder config file to read the destination from.")
	hostport   = flag.String("hostport", "", "Hostname and port of destination. Must be used if config file is not present.")
	name       = flag.String("name", "", "Name of metric to report. Ex: daemontools.service.starts")
	gauge      = flag.Float64("gauge", 0, "Report a 'gauge' metric. Value must be float64.")
	timing     = flag.Duration("timing", 0, "Report a 'timing' metric. Value must be parseable by time.ParseDuration.")
	timeinms   = flag.Float64("timeinms", 0, "Report a 'timing' metric, in milliseconds. Value must be float64.")
	count      = flag.Int64("count", 0, "Report a 'count' metric. Value must be an integer.")
	histogram  = flag.Float64("histogram", 0, "Report a 'histogram' metric. Value must be float64.")
	debug      = flag.Bool("debug", false, "Turns on debug messages.")
	lines      lineFlag
)

func init() {
	flag.Var(&lines, "line", "A raw statsd line, sent as is. May be repeated, all lines go out in one packet.")
}

// MinimalClient represents the functions that we call on Clients in statsdecoder-emit.
type MinimalClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
}

func main() {
	passedFlags := flags()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var config *statsdecoder.Config
	if passedFlags["f"] {
		conf, err := statsdecoder.ReadConfig(*configFile)
		if err != nil {
			logrus.WithError(err).Fatal("Error reading configuration file.")
		}
		config = &conf
	}

	network, address, err := addr(passedFlags, config, *hostport)
	if err != nil {
		logrus.WithError(err).Fatal("Error!")
	}
	logrus.WithField("network", network).Debugf("destination: %s", address)

	if len(lines) > 0 {
		if err := sendLines(network, address, lines); err != nil {
			logrus.WithError(err).Fatal("Error!")
		}
		return
	}

	clientAddress := address
	if network == "unixgram" {
		clientAddress = "unix://" + address
	}
	client, err := statsd.New(clientAddress, statsd.WithoutTelemetry())
	if err != nil {
		logrus.WithError(err).Fatal("Error!")
	}
	err = sendMetrics(client, passedFlags, *name)
	if closeErr := client.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logrus.WithError(err).Fatal("Error!")
	}
}

func flags() map[string]bool {
	flag.Parse()
	// hacky way to detect which flags were *actually* set
	passedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		passedFlags[f.Name] = true
	})
	return passedFlags
}

// addr picks the destination: the first statsd listen address of the
// config, or else hostport.
func addr(
	passedFlags map[string]bool, conf *statsdecoder.Config, hostport string,
) (network string, address string, err error) {
	if passedFlags["f"] && conf != nil {
		if len(conf.StatsdListenAddresses) == 0 {
			return "", "", errors.New("the config has no statsd listen address")
		}
		listen := conf.StatsdListenAddresses[0].Value
		if listen.Scheme == "unixgram" {
			return "unixgram", listen.Path, nil
		}
		return listen.Scheme, listen.Host, nil
	}
	if passedFlags["hostport"] && strings.Contains(hostport, ":") {
		return "udp", hostport, nil
	}
	return "", "", errors.New("you must either specify a statsdecoder config file or a valid hostport")
}

// sendLines writes the lines as a single datagram.
func sendLines(network, address string, lines []string) error {
	conn, err := net.Dial(network, address)
	if err != nil {
		return err
	}
	defer conn.Close()

	packet := strings.Join(lines, "\n")
	logrus.Debugf("Sending %d lines: %q", len(lines), packet)
	n, err := conn.Write([]byte(packet))
	if err != nil {
		return err
	}
	if n != len(packet) {
		return fmt.Errorf("short write: sent %d of %d bytes", n, len(packet))
	}
	return nil
}

func sendMetrics(client MinimalClient, passedFlags map[string]bool, name string) error {
	var err error
	if passedFlags["gauge"] {
		logrus.Debugf("Sending gauge '%s' -> %f", name, *gauge)
		err = client.Gauge(name, *gauge, nil, 1)
		if err != nil {
			return err
		}
	}
	if passedFlags["timing"] {
		logrus.Debugf("Sending timing '%s' -> %s", name, *timing)
		err = client.Timing(name, *timing, nil, 1)
		if err != nil {
			return err
		}
	}
	if passedFlags["timeinms"] {
		logrus.Debugf("Sending timeinms '%s' -> %f", name, *timeinms)
		err = client.TimeInMilliseconds(name, *timeinms, nil, 1)
		if err != nil {
			return err
		}
	}
	if passedFlags["count"] {
		logrus.Debugf("Sending count '%s' -> %d", name, *count)
		err = client.Count(name, *count, nil, 1)
		if err != nil {
			return err
		}
	}
	if passedFlags["histogram"] {
		logrus.Debugf("Sending histogram '%s' -> %f", name, *histogram)
		err = client.Histogram(name, *histogram, nil, 1)
		if err != nil {
			return err
		}
	}
	if !passedFlags["gauge"] && !passedFlags["timing"] && !passedFlags["timeinms"] &&
		!passedFlags["count"] && !passedFlags["histogram"] {
		logrus.Info("No metrics reported.")
	}
	return err
}
