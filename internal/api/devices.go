package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lanregistry/internal/registry"
)

// registerRequest is the JSON body for device registration.
//
// Firmware in the field posts device_name and ip; newer clients post
// identifier and address. The newer keys win when both are present.
type registerRequest struct {
	Identifier string `json:"identifier"`
	Address    string `json:"address"`
	Status     string `json:"status"`
	DeviceName string `json:"device_name"`
	IP         string `json:"ip"`
}

func (r registerRequest) toRegistry() (registry.RegisterRequest, error) {
	status, err := registry.ParseStatus(r.Status)
	if err != nil {
		return registry.RegisterRequest{}, err
	}
	req := registry.RegisterRequest{
		Identifier: r.Identifier,
		Address:    r.Address,
		Status:     status,
	}
	if req.Identifier == "" {
		req.Identifier = r.DeviceName
	}
	if req.Address == "" {
		req.Address = r.IP
	}
	return req, nil
}

// handleRegisterDevice records a device announcement.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	req, err := body.toRegistry()
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	if err := s.service.Register(r.Context(), req); err != nil {
		if !isClientError(err) {
			s.logger.Error("device registration failed", "identifier", req.Identifier, "error", err)
		}
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// legacyDevice is a record in the shape deployed firmware and dashboards read
// from GET /devices.
type legacyDevice struct {
	DeviceName string          `json:"device_name"`
	IP         string          `json:"ip"`
	Status     registry.Status `json:"status"`
	LastSeen   time.Time       `json:"last_seen"`
}

// handleListDevices returns every device, optionally filtered by ?status=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, ok := s.listDevices(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleLegacyListDevices serves GET /devices with device_name and ip keys.
func (s *Server) handleLegacyListDevices(w http.ResponseWriter, r *http.Request) {
	devices, ok := s.listDevices(w, r)
	if !ok {
		return
	}

	out := make([]legacyDevice, len(devices))
	for i, d := range devices {
		out[i] = legacyDevice{
			DeviceName: d.Identifier,
			IP:         d.Address,
			Status:     d.Status,
			LastSeen:   d.LastSeen,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// listDevices fetches the records for a list request. On failure it writes
// the error response and returns false.
func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) ([]registry.DeviceRecord, bool) {
	var (
		devices []registry.DeviceRecord
		err     error
	)

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, parseErr := registry.ParseStatus(raw)
		if parseErr != nil {
			writeRegistryError(w, parseErr)
			return nil, false
		}
		devices, err = s.service.ListByStatus(r.Context(), status)
	} else {
		devices, err = s.service.List(r.Context())
	}
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeRegistryError(w, err)
		return nil, false
	}
	return devices, true
}

// handleDeregisterDevice removes a device. Unknown identifiers succeed.
func (s *Server) handleDeregisterDevice(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	// chi matches on the raw path when the URL carried escapes it could not
	// represent decoded, such as %2F.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(identifier)
		if err != nil {
			writeBadRequest(w, "invalid identifier encoding")
			return
		}
		identifier = unescaped
	}

	if err := s.service.Deregister(r.Context(), identifier); err != nil {
		if !isClientError(err) {
			s.logger.Error("device deregistration failed", "identifier", identifier, "error", err)
		}
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSweep runs a liveness pass immediately.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.sweeper.SweepNow(r.Context())
	if err != nil {
		s.logger.Error("manual sweep failed", "error", err)
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"transitioned": n})
}

func isClientError(err error) bool {
	return errors.Is(err, registry.ErrInvalidInput)
}
