package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"go.uber.org/zap"
)

const bodyLimit = 1 << 20

type resultsResponse struct {
	Results map[string]*shipper.ShipmentResult `json:"results"`
}

type labelsResponse struct {
	Labels [][]byte `json:"labels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.orderIDs(w, r)
	if !ok {
		return
	}
	results, err := s.shipments.RegisterShipments(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, resultsResponse{Results: keyed(results)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.orderIDs(w, r)
	if !ok {
		return
	}
	results, err := s.shipments.DeleteShipments(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, resultsResponse{Results: keyed(results)})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.orderIDs(w, r)
	if !ok {
		return
	}
	labels, err := s.shipments.GetLabels(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	if labels == nil {
		labels = [][]byte{}
	}
	s.writeJSON(w, r, http.StatusOK, labelsResponse{Labels: labels})
}

func (s *Server) handleOrderLabel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "orderID"))
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid order id"))
		return
	}
	label, err := s.shipments.GetOrderLabel(r.Context(), id)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+strconv.Itoa(id)+".pdf\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(label)
}

// orderIDs reads and resolves the order ids of a batch request, writing a
// 400 response when none can be resolved.
func (s *Server) orderIDs(w http.ResponseWriter, r *http.Request) ([]int, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("unreadable request body"))
		return nil, false
	}
	ids, err := ResolveOrderIDs(body)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	return ids, true
}

func keyed(results map[int]*shipper.ShipmentResult) map[string]*shipper.ShipmentResult {
	out := make(map[string]*shipper.ShipmentResult, len(results))
	for id, res := range results {
		out[strconv.Itoa(id)] = res
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shipper.ErrNoOrderIDs):
		return http.StatusBadRequest
	case errors.Is(err, shipper.ErrLabelNotAvailable), errors.Is(err, shipper.ErrOrderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Ctx(r.Context()).Error("Failed to encode response",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := s.logger.Ctx(r.Context())
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Warn("Request rejected", fields...)
	}
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}
