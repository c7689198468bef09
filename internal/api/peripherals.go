package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iobridge/internal/bridge"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// PeripheralResponse describes one registered peripheral.
type PeripheralResponse struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	State   string `json:"state"`
}

// CreatePeripheralRequest is the body of POST /peripherals. Address takes
// the same forms as the OSC create command: "0x48", "48" or 72.
type CreatePeripheralRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address any    `json:"address"`
}

// CommandRequest is the body of POST /peripherals/{name}/command.
type CommandRequest struct {
	Command string `json:"command"`
	Args    []any  `json:"args"`
}

// PollRequest is the body of PUT /poll.
type PollRequest struct {
	RateHz *float64 `json:"rate_hz"`
}

// PollResponse reports the active poll rate.
type PollResponse struct {
	RateHz     float64 `json:"rate_hz"`
	IntervalMS int64   `json:"interval_ms"`
}

func toPeripheralResponse(info peripheral.Info) PeripheralResponse {
	return PeripheralResponse{
		Name:    info.Name,
		Type:    string(info.Type),
		Address: peripheral.FormatAddress(info.Address),
		State:   info.State.String(),
	}
}

// handleListPeripherals returns peripherals in registration order.
func (s *Server) handleListPeripherals(w http.ResponseWriter, _ *http.Request) {
	infos := s.bridge.Registry().Infos()
	out := make([]PeripheralResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toPeripheralResponse(info))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"peripherals": out,
		"count":       len(out),
	})
}

func (s *Server) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"types": s.bridge.Registry().Catalog().Types(),
	})
}

func (s *Server) handleGetPeripheral(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	drv, ok := s.bridge.Registry().Get(name)
	if !ok {
		writeNotFound(w, "peripheral not found")
		return
	}
	writeJSON(w, http.StatusOK, toPeripheralResponse(peripheral.Describe(drv)))
}

// handleCreatePeripheral creates or replaces a peripheral.
func (s *Server) handleCreatePeripheral(w http.ResponseWriter, r *http.Request) {
	var req CreatePeripheralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	addr, err := peripheral.ParseAddress(req.Address)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	registry := s.bridge.Registry()
	typ := peripheral.Type(strings.ToLower(req.Type))
	if err := bridge.CreatePeripheral(r.Context(), registry, req.Name, typ, addr); err != nil {
		writeBridgeError(w, err)
		return
	}

	drv, ok := registry.Get(req.Name)
	if !ok {
		writeInternalError(w, "peripheral vanished after create")
		return
	}
	writeJSON(w, http.StatusCreated, toPeripheralResponse(peripheral.Describe(drv)))
}

// handleDeletePeripheral cleans up and removes a peripheral. A cleanup
// failure is logged; the peripheral is gone either way.
func (s *Server) handleDeletePeripheral(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	registry := s.bridge.Registry()
	if _, ok := registry.Get(name); !ok {
		writeNotFound(w, "peripheral not found")
		return
	}
	if err := registry.Remove(r.Context(), name); err != nil {
		s.logger.Warn("peripheral cleanup failed", "name", name, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand sends a device command through the router, the same path
// an OSC message to /<name>/<command> takes.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if bridge.IsReserved(name) {
		writeNotFound(w, "peripheral not found")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	address := "/" + name + "/" + strings.TrimPrefix(req.Command, "/")
	if err := s.bridge.Router().Dispatch(r.Context(), address, req.Args); err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"status":  "applied",
	})
}

func (s *Server) pollResponse() PollResponse {
	p := s.bridge.Poller()
	return PollResponse{
		RateHz:     p.Rate(),
		IntervalMS: p.Interval().Milliseconds(),
	}
}

func (s *Server) handleGetPoll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pollResponse())
}

// handleSetPoll changes the poll rate. Rates below the minimum are clamped.
func (s *Server) handleSetPoll(w http.ResponseWriter, r *http.Request) {
	var req PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.RateHz == nil {
		writeBadRequest(w, "rate_hz is required")
		return
	}
	if _, err := s.bridge.Poller().SetRate(*req.RateHz); err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pollResponse())
}
