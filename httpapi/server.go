// Package httpapi exposes the bridge's control surface over HTTP: device
// selection, connection lifecycle, sentence configuration, sensor state
// and history, and UDP streaming control. It is a thin net/http adapter
// over the link, reader, aggregate, udpfanout and state packages -- no
// business logic lives here.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/blue-robotics/nmea-bridge/aggregate"
	"github.com/blue-robotics/nmea-bridge/link"
	"github.com/blue-robotics/nmea-bridge/reader"
	"github.com/blue-robotics/nmea-bridge/state"
	"github.com/blue-robotics/nmea-bridge/udpfanout"
)

// Server wires the bridge's components behind an http.Handler.
type Server struct {
	Link    *link.Manager
	Reader  *reader.Reader
	Agg     *aggregate.Aggregator
	FanOut  *udpfanout.FanOut
	State   *state.Store
	Logger  *log.Logger
	Version string
	RawLog  *RawLog

	mux *http.ServeMux
}

// New builds the routed handler. Call Handler to get an http.Handler.
func New(l *link.Manager, r *reader.Reader, agg *aggregate.Aggregator, fo *udpfanout.FanOut, st *state.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{Link: l, Reader: r, Agg: agg, FanOut: fo, State: st, Logger: logger, Version: "dev"}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.withLogging(s.mux) }

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.Logger.Printf("httpapi: %s %s %s", req.Method, req.URL.Path, time.Since(start))
	})
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ports", s.handlePorts)
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/baud", s.handleChangeBaud)

	s.mux.HandleFunc("/sentences", s.handleSentences)
	s.mux.HandleFunc("/sentences/configure", s.handleConfigureSentence)
	s.mux.HandleFunc("/sentences/batch", s.handleConfigureBatch)
	s.mux.HandleFunc("/sentences/query", s.handleQuerySentences)
	s.mux.HandleFunc("/sentences/save", s.handleSaveEEPROM)
	s.mux.HandleFunc("/sentences/load-defaults", s.handleLoadDefaults)

	s.mux.HandleFunc("/sensors", s.handleSensors)
	s.mux.HandleFunc("/sensors/history", s.handleHistory)
	s.mux.HandleFunc("/raw", s.handleRaw)
	s.mux.HandleFunc("/message-types", s.handleMessageTypes)

	s.mux.HandleFunc("/stream/start", s.handleStreamStart)
	s.mux.HandleFunc("/stream/stop", s.handleStreamStop)
	s.mux.HandleFunc("/stream/status", s.handleStreamStatus)

	s.mux.HandleFunc("/register_service", s.handleRegisterService)
	s.mux.HandleFunc("/docs", s.handleDocs)

	s.mux.HandleFunc("/logs/raw", s.handleRawLogDownload)
	s.mux.HandleFunc("/logs/raw/delete", s.handleRawLogDelete)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
