package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/blue-robotics/nmea-bridge/aggregate"
	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/blue-robotics/nmea-bridge/serialport"
	"github.com/blue-robotics/nmea-bridge/state"
)

const queryWindow = 1500 * time.Millisecond

const (
	minIntervalSeconds = 0.1
	maxIntervalSeconds = 5.0
)

// secondsToTenths is the configure-* API's single unit-conversion point:
// clients speak interval in seconds, the device speaks tenths of a second.
// Nowhere else in the tree performs this conversion.
func secondsToTenths(seconds float64) int {
	if seconds < minIntervalSeconds {
		seconds = minIntervalSeconds
	}
	if seconds > maxIntervalSeconds {
		seconds = maxIntervalSeconds
	}
	return int(math.Round(seconds * 10))
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	devices, err := serialport.Enumerate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

type connectRequest struct {
	Path string `json:"path"`
	Baud int    `json:"baud"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: path is required"))
		return
	}

	persisted := s.State.Get().SentenceConfig
	if err := s.Link.Connect(r.Context(), req.Path, req.Baud, persisted); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	s.Reader.Start()

	_ = s.State.Update(func(c *state.PersistedConfig) {
		c.DevicePath = req.Path
		c.PreferredBaud = s.Link.Baud()
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": s.Link.Status(),
		"path":   s.Link.Path(),
		"baud":   s.Link.Baud(),
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.Agg.Snapshot.Clear()
	s.FanOut.Stop()
	s.Reader.Stop()
	if err := s.Link.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(s.Link.Status())})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": s.Link.Status(),
		"path":   s.Link.Path(),
		"baud":   s.Link.Baud(),
		"health": s.Reader.Health(),
	})
}

type baudRequest struct {
	Baud int `json:"baud"`
}

func (s *Server) handleChangeBaud(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	var req baudRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Baud != 4800 && req.Baud != 38400 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("httpapi: baud must be 4800 or 38400"))
		return
	}
	if err := s.Link.ChangeBaud(r.Context(), req.Baud); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	_ = s.State.Update(func(c *state.PersistedConfig) { c.PreferredBaud = req.Baud })
	writeJSON(w, http.StatusOK, map[string]int{"baud": s.Link.Baud()})
}

func (s *Server) handleSentences(w http.ResponseWriter, r *http.Request) {
	cfg := s.State.Get().SentenceConfig
	type entry struct {
		sentence.SentenceSpec
		sentence.SentenceConfig
	}
	out := make([]entry, 0, len(sentence.Registry))
	for _, spec := range sentence.Registry {
		c, ok := cfg[spec.ID]
		if !ok {
			c = sentence.SentenceConfig{Enabled: spec.DefaultEnabled, IntervalTenths: spec.DefaultIntervalTenths}
		}
		out = append(out, entry{spec, c})
	}
	writeJSON(w, http.StatusOK, out)
}

type configureSentenceRequest struct {
	ID              string  `json:"id"`
	Enabled         bool    `json:"enabled"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

func (s *Server) handleConfigureSentence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	var req configureSentenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := sentence.Lookup(req.ID); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("httpapi: unknown sentence id %q", req.ID))
		return
	}
	cfg := sentence.SentenceConfig{Enabled: req.Enabled, IntervalTenths: secondsToTenths(req.IntervalSeconds)}.Clamp()
	if err := s.Link.ConfigureSentence(req.ID, cfg); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	_ = s.State.Update(func(c *state.PersistedConfig) { c.SentenceConfig[req.ID] = cfg })
	writeJSON(w, http.StatusOK, cfg)
}

type batchEntry struct {
	Enabled         bool    `json:"enabled"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

func (s *Server) handleConfigureBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	var req map[string]batchEntry
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for id := range req {
		if _, ok := sentence.Lookup(id); !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("httpapi: unknown sentence id %q", id))
			return
		}
	}
	cfgs := make(map[string]sentence.SentenceConfig, len(req))
	for id, entry := range req {
		cfgs[id] = sentence.SentenceConfig{Enabled: entry.Enabled, IntervalTenths: secondsToTenths(entry.IntervalSeconds)}.Clamp()
	}
	if err := s.Link.ConfigureBatch(cfgs); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	_ = s.State.Update(func(c *state.PersistedConfig) {
		for id, cfg := range cfgs {
			c.SentenceConfig[id] = cfg
		}
	})
	writeJSON(w, http.StatusOK, cfgs)
}

func (s *Server) handleQuerySentences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryWindow+time.Second)
	defer cancel()
	cfgs, err := s.Link.Query(ctx, queryWindow)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, cfgs)
}

func (s *Server) handleSaveEEPROM(w http.ResponseWriter, r *http.Request) {
	if err := s.Link.SaveToEEPROM(); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) handleLoadDefaults(w http.ResponseWriter, r *http.Request) {
	if err := s.Link.LoadDefaults(); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"loaded": true})
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Agg.Snapshot.View())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("series")
	if name == "" {
		writeJSON(w, http.StatusOK, allSeries(s.Agg))
		return
	}
	writeJSON(w, http.StatusOK, s.Agg.History.Series(name))
}

func allSeries(agg *aggregate.Aggregator) map[string][]aggregate.Point {
	out := make(map[string][]aggregate.Point, len(aggregate.Names()))
	for _, name := range aggregate.Names() {
		out[name] = agg.History.Series(name)
	}
	return out
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items := s.Reader.Recent()
	if limit < len(items) {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleMessageTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.State.Get().SelectedMessageTypes)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	var types []string
	if err := decodeJSON(r, &types); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.FanOut.SetSelectedTypes(types)
	_ = s.State.Update(func(c *state.PersistedConfig) { c.SelectedMessageTypes = types })
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	s.FanOut.SetSelectedTypes(s.State.Get().SelectedMessageTypes)
	s.FanOut.Start()
	_ = s.State.Update(func(c *state.PersistedConfig) { c.AutoStream = true })
	writeJSON(w, http.StatusOK, map[string]bool{"streaming": true})
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	s.FanOut.Stop()
	_ = s.State.Update(func(c *state.PersistedConfig) { c.AutoStream = false })
	writeJSON(w, http.StatusOK, map[string]bool{"streaming": false})
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"streaming":         s.FanOut.Streaming(),
		"streamed_messages": s.FanOut.StreamedMessages(),
	})
}

func (s *Server) handleRegisterService(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "nmea-bridge",
		"version": s.Version,
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{
		"/ports", "/connect", "/disconnect", "/status", "/baud",
		"/sentences", "/sentences/configure", "/sentences/batch",
		"/sentences/query", "/sentences/save", "/sentences/load-defaults",
		"/sensors", "/sensors/history", "/raw", "/message-types",
		"/stream/start", "/stream/stop", "/stream/status",
	})
}
