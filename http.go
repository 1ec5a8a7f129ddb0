package statsdecoder

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/statsdecoder/protocol"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/util/build"
	"github.com/stripe/statsdecoder/util/config"
	"goji.io"
	"goji.io/pat"
)

// Handler returns the Handler responsible for routing request processing.
func (server *Server) Handler() http.Handler {
	mux := goji.NewMux()

	mux.HandleFunc(pat.Get("/healthcheck"), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	mux.HandleFunc(pat.Get("/builddate"), build.HandleBuildDate)
	mux.HandleFunc(pat.Get("/version"), build.HandleVersion)

	mux.HandleFunc(pat.Get("/config/json"), config.HandleConfigJson(server.Config))
	mux.HandleFunc(pat.Get("/config/yaml"), config.HandleConfigYaml(server.Config))

	mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(
		server.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc(pat.Post("/decode"), server.handleDecode)

	mux.Handle(pat.Get("/debug/pprof/cmdline"), http.HandlerFunc(pprof.Cmdline))
	mux.Handle(pat.Get("/debug/pprof/profile"), http.HandlerFunc(pprof.Profile))
	mux.Handle(pat.Get("/debug/pprof/symbol"), http.HandlerFunc(pprof.Symbol))
	mux.Handle(pat.Get("/debug/pprof/trace"), http.HandlerFunc(pprof.Trace))
	mux.Handle(pat.Get("/debug/pprof/*"), http.HandlerFunc(pprof.Index))

	return mux
}

// handleDecode decodes the request body as one statsd packet and responds
// with the metrics as a JSON array. The client is the sender and the
// server's local address the recipient. Nothing is forwarded to the sinks.
func (server *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(
		http.MaxBytesReader(w, r.Body, int64(server.metricMaxLength)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var sender netip.AddrPort
	if remote, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		sender = netip.AddrPortFrom(remote.Addr().Unmap(), remote.Port())
	}
	var recipient netip.AddrPort
	if local, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		recipient = protocol.AddrPortOf(local)
	}

	metrics, stats, err := server.decoder.DecodeWithStats(body, sender, recipient)
	if err != nil {
		if statsd.IsPayloadError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	server.stats.observe(stats)
	if metrics == nil {
		metrics = []statsd.Metric{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(metrics); err != nil {
		server.logger.WithError(err).Warn("Could not write decode response")
	}
}
