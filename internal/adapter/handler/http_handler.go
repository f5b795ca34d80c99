package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/adapter/input"
	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/core/service"
)

// ScanHandler is the HTTP surface of the scan pipeline. The technician
// identity is established upstream and arrives in the X-Technician and
// X-Technician-Role headers.
type ScanHandler struct {
	sessions *service.Manager
	clock    clock.Clock
	hidIdle  time.Duration

	mu       sync.Mutex
	stations map[string]*station
}

// station bundles one technician's session with its input adapters. The
// camera channel feeds a running CameraAdapter for the station's lifetime.
type station struct {
	session *service.Session
	manual  *input.ManualAdapter
	hid     *input.HIDAdapter
	camera  chan string
}

func NewScanHandler(sessions *service.Manager, clk clock.Clock, hidIdle time.Duration) *ScanHandler {
	return &ScanHandler{
		sessions: sessions,
		clock:    clk,
		hidIdle:  hidIdle,
		stations: make(map[string]*station),
	}
}

func (h *ScanHandler) station(tech domain.Technician) *station {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.stations[tech.ID]; ok {
		return st
	}
	session := h.sessions.Session(tech)
	st := &station{
		session: session,
		manual:  input.NewManualAdapter(session, h.clock),
		hid:     input.NewHIDAdapter(session, h.clock, h.hidIdle),
		camera:  make(chan string, 16),
	}
	go input.NewCameraAdapter(session, h.clock).Run(st.camera)
	h.stations[tech.ID] = st
	return st
}

func technician(r *http.Request) (domain.Technician, bool) {
	id := r.Header.Get("X-Technician")
	if id == "" {
		return domain.Technician{}, false
	}
	role := r.Header.Get("X-Technician-Role")
	if role == "" {
		role = "technician"
	}
	return domain.Technician{ID: id, Role: role}, true
}

type ScanRequest struct {
	Code string `json:"code"`
}

type ScanResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

type KeyInput struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl,omitempty"`
	Alt  bool   `json:"alt,omitempty"`
	Meta bool   `json:"meta,omitempty"`
}

type KeysRequest struct {
	Keys []KeyInput `json:"keys"`
}

type CameraRequest struct {
	Decodes []string `json:"decodes"`
}

type ActionRequest struct {
	Action string `json:"action"`
}

type CommitRequest struct {
	Quantity  int    `json:"quantity"`
	MachineID string `json:"machine_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type CommitResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	QuantitySigned int    `json:"quantity_signed,omitempty"`
}

type BatchRequest struct {
	Enabled bool `json:"enabled"`
}

type PendingResponse struct {
	PartID     string `json:"part_id"`
	PartName   string `json:"part_name"`
	PartNumber string `json:"part_number"`
	Barcode    string `json:"barcode"`
	Quantity   int    `json:"current_quantity"`
	Type       string `json:"type,omitempty"`
}

type SessionResponse struct {
	State      string           `json:"state"`
	GateOpen   bool             `json:"gate_open"`
	BatchMode  bool             `json:"batch_mode"`
	QueueDepth int              `json:"queue_depth"`
	Notice     string           `json:"notice,omitempty"`
	LowStock   bool             `json:"low_stock,omitempty"`
	Pending    *PendingResponse `json:"pending,omitempty"`
}

// Scan accepts a manually entered barcode.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ScanResponse{Accepted: false, Message: "invalid request body"})
		return
	}

	if !st.manual.Submit(req.Code) {
		writeJSON(w, http.StatusConflict, ScanResponse{Accepted: false, Message: "scanner busy"})
		return
	}

	writeJSON(w, http.StatusAccepted, ScanResponse{Accepted: true})
}

// Keys accepts a raw keystroke burst from a HID scanner bridge.
func (h *ScanHandler) Keys(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req KeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ScanResponse{Accepted: false, Message: "invalid request body"})
		return
	}

	for _, k := range req.Keys {
		st.hid.Key(input.Keystroke{Key: k.Key, Ctrl: k.Ctrl, Alt: k.Alt, Meta: k.Meta})
	}

	writeJSON(w, http.StatusAccepted, ScanResponse{Accepted: true})
}

// Camera accepts decoded frames from a camera scanner bridge.
func (h *ScanHandler) Camera(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ScanResponse{Accepted: false, Message: "invalid request body"})
		return
	}

	for _, code := range req.Decodes {
		st.camera <- code
	}

	writeJSON(w, http.StatusAccepted, ScanResponse{Accepted: true})
}

// Action applies a menu choice to the resolved part.
func (h *ScanHandler) Action(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ScanResponse{Accepted: false, Message: "invalid request body"})
		return
	}

	if err := st.session.Choose(service.MenuAction(req.Action)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidTransition) {
			status = http.StatusConflict
		}
		writeJSON(w, status, ScanResponse{Accepted: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{Accepted: true})
}

// Commit applies the pending stock movement.
func (h *ScanHandler) Commit(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CommitResponse{Success: false, Message: "invalid request body"})
		return
	}

	record, err := st.session.Commit(r.Context(), req.Quantity, req.MachineID, req.Notes)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrValidation):
			status = http.StatusBadRequest
			message = "quantity must be positive"
		case errors.Is(err, service.ErrInsufficientStock):
			status = http.StatusConflict
			message = "insufficient stock"
		case errors.Is(err, service.ErrInvalidTransition):
			status = http.StatusConflict
			message = "no transaction in progress"
		}

		writeJSON(w, status, CommitResponse{Success: false, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, CommitResponse{
		Success:        true,
		TransactionID:  record.ID,
		QuantitySigned: record.QuantitySigned,
	})
}

// Cancel resets the session to Scan from any state.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	st.hid.Reset()
	st.session.Cancel()
	writeJSON(w, http.StatusOK, ScanResponse{Accepted: true})
}

// Batch toggles batch scanning for the session.
func (h *ScanHandler) Batch(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodPost)
	if !ok {
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ScanResponse{Accepted: false, Message: "invalid request body"})
		return
	}

	st.session.SetBatchMode(req.Enabled)
	writeJSON(w, http.StatusOK, ScanResponse{Accepted: true})
}

// Session reports the observable session state.
func (h *ScanHandler) Session(w http.ResponseWriter, r *http.Request) {
	_, st, ok := h.authed(w, r, http.MethodGet)
	if !ok {
		return
	}

	v := st.session.View()
	resp := SessionResponse{
		State:      string(v.State),
		GateOpen:   v.GateOpen,
		BatchMode:  v.BatchMode,
		QueueDepth: v.QueueDepth,
		Notice:     v.Notice,
		LowStock:   v.LowStock,
	}
	if v.Pending != nil {
		resp.Pending = &PendingResponse{
			PartID:     v.Pending.Part.ID,
			PartName:   v.Pending.Part.Name,
			PartNumber: v.Pending.Part.PartNumber,
			Barcode:    v.Pending.Part.Barcode,
			Quantity:   v.Pending.Part.CurrentQuantity,
			Type:       string(v.Pending.Type),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ScanHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ScanHandler) authed(w http.ResponseWriter, r *http.Request, method string) (domain.Technician, *station, bool) {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return domain.Technician{}, nil, false
	}
	tech, ok := technician(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ScanResponse{Accepted: false, Message: "missing technician identity"})
		return domain.Technician{}, nil, false
	}
	return tech, h.station(tech), true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
