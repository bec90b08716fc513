package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sensorhub-io/sensorhub/internal/engine"
)

// errorResponse is the JSON envelope for every error the API returns.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// listResponse pairs a page of items with its pagination envelope.
type listResponse struct {
	Data       any               `json:"data"`
	Pagination engine.Pagination `json:"pagination"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps engine error kinds onto HTTP statuses: validation 400,
// not found 404, conflict 409, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case engine.IsValidation(err):
		status = http.StatusBadRequest
		code = "validation"
	case engine.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case engine.IsConflict(err):
		status = http.StatusConflict
		code = "conflict"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    "validation",
			Message: "malformed request body: " + err.Error(),
		}})
		return false
	}
	return true
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input engine.DeviceInput
	if !s.decode(w, r, &input) {
		return
	}

	device, err := s.engine.RegisterDevice(input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.engine.GetDevice(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter := engine.DeviceFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	}
	page, limit := pageParams(r)

	devices, pagination := s.engine.ListDevices(filter, page, limit)
	s.writeJSON(w, http.StatusOK, listResponse{Data: devices, Pagination: pagination})
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var patch engine.DevicePatch
	if !s.decode(w, r, &patch) {
		return
	}

	device, err := s.engine.UpdateDevice(r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.DeleteDevice(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"deletedSensorCount": removed})
}

func (s *Server) handleRegisterSensor(w http.ResponseWriter, r *http.Request) {
	var input engine.SensorInput
	if !s.decode(w, r, &input) {
		return
	}

	sensor, err := s.engine.RegisterSensor(input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sensor)
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, err := s.engine.GetSensor(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	filter := engine.SensorFilter{
		DeviceID: r.URL.Query().Get("deviceId"),
		Type:     r.URL.Query().Get("type"),
		Category: r.URL.Query().Get("category"),
	}
	page, limit := pageParams(r)

	sensors, pagination := s.engine.ListSensors(filter, page, limit)
	s.writeJSON(w, http.StatusOK, listResponse{Data: sensors, Pagination: pagination})
}

func (s *Server) handleSensorSummary(w http.ResponseWriter, _ *http.Request) {
	counts := s.engine.SensorHealthCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"totalSensors": total,
		"byHealth":     counts,
	})
}

func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	var req engine.IngestRequest
	if !s.decode(w, r, &req) {
		return
	}

	point, err := s.engine.IngestOne(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, point)
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var items []engine.IngestRequest
	if !s.decode(w, r, &items) {
		return
	}

	result := s.engine.IngestBatch(items)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	filter := engine.ReadingFilter{
		SensorID: r.URL.Query().Get("sensorId"),
		DeviceID: r.URL.Query().Get("deviceId"),
	}
	if raw := r.URL.Query().Get("startTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
				Code:    "validation",
				Message: "startTime must be RFC3339",
			}})
			return
		}
		filter.Start = &t
	}
	if raw := r.URL.Query().Get("endTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
				Code:    "validation",
				Message: "endTime must be RFC3339",
			}})
			return
		}
		filter.End = &t
	}
	page, limit := pageParams(r)

	readings, pagination := s.engine.ListReadings(filter, page, limit)
	s.writeJSON(w, http.StatusOK, listResponse{Data: readings, Pagination: pagination})
}
