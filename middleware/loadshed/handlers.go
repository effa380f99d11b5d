package loadshed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/application"
	"equipment-loans/middleware/loadshed/domain"
)

// HeaderDataSource indica se a resposta veio do cache ou da fonte de verdade.
const HeaderDataSource = "X-Data-Source"

const maxBodyBytes = 1 << 16

// API agrupa os handlers HTTP. Todos os campos de serviço são obrigatórios,
// exceto Stats.
type API struct {
	Admission application.Admission
	Inventory application.ReadThroughCache[[]domain.Equipment]
	Returns   application.ReturnService
	Meter     application.SaturationMeter
	Queue     application.WriteQueue
	Loans     domain.LoanStore
	Stats     domain.StatsStore

	InstanceID string
	Logger     log.FieldLogger
}

type loanRequestBody struct {
	Email       string `json:"email"`
	EquipmentID int64  `json:"equipment_id"`
	Quantity    int    `json:"quantity"`
}

type loanResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Instance string `json:"instance"`
	Source   string `json:"source"`
	EntryID  string `json:"entry_id,omitempty"`
}

type returnRequestBody struct {
	Email string `json:"email"`
}

type returnResponse struct {
	Message string               `json:"message"`
	Return  domain.ReturnOutcome `json:"return"`
}

type systemReport struct {
	TotalRequests   int64  `json:"total_requests"`
	HotRequestCount int64  `json:"hot_request_count"`
	Threshold       int64  `json:"threshold"`
	Saturated       bool   `json:"saturated"`
	DataSource      string `json:"data_source"`
	QueueDepth      int64  `json:"queue_depth"`
	Instance        string `json:"instance"`
}

func (a *API) logger() log.FieldLogger {
	if a.Logger == nil {
		return log.NewDisabledLogger()
	}
	return a.Logger
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// SubmitLoan trata POST /api/loans.
func (a *API) SubmitLoan(w http.ResponseWriter, r *http.Request) {
	logger := a.logger()

	var body loanRequestBody
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", logger)
		return
	}
	req, err := domain.NewLoanRequest(body.Email, body.EquipmentID, body.Quantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), logger)
		return
	}

	v, err := a.Admission.Admit(r.Context(), req)
	switch {
	case err == nil:
	case domain.IsRejection(err):
		respondError(w, http.StatusConflict, rejectionMessage(err), logger)
		return
	default:
		logger.Error("loan admission failed", log.Error(err), log.String("requester", req.RequesterEmail))
		respondError(w, http.StatusInternalServerError, "internal error", logger)
		return
	}

	if v.Queued {
		respondJSON(w, http.StatusAccepted, loanResponse{
			Status:   "QUEUED",
			Message:  "system saturated, the request will be processed automatically when load drops",
			Instance: v.InstanceID,
			Source:   string(v.Source),
			EntryID:  v.EntryID,
		}, logger)
		return
	}
	respondJSON(w, http.StatusOK, loanResponse{
		Status:   "SUCCESS",
		Message:  "loan registered",
		Instance: v.InstanceID,
		Source:   string(v.Source),
	}, logger)
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrActiveLoan):
		return domain.ErrActiveLoan.Error()
	case errors.Is(err, domain.ErrConflict):
		return domain.ErrConflict.Error()
	}
	return err.Error()
}

// AvailableInventory trata GET /api/loans/available. Usa o snapshot apenas
// quando o SaturationMiddleware sinalizou saturação.
func (a *API) AvailableInventory(w http.ResponseWriter, r *http.Request) {
	logger := a.logger()

	sig, _ := SaturationFromContext(r.Context())
	items, src, err := a.Inventory.Resolve(r.Context(), sig.Saturated, a.Loans.ListAvailableInventory)
	if err != nil {
		logger.Error("inventory read failed", log.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", logger)
		return
	}
	if items == nil {
		items = []domain.Equipment{}
	}
	w.Header().Set(HeaderDataSource, string(src))
	respondJSON(w, http.StatusOK, items, logger)
}

// ReturnLoan trata PUT /api/loans/return/{loanId}.
func (a *API) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	logger := a.logger()

	loanID, err := strconv.ParseInt(chi.URLParam(r, "loanId"), 10, 64)
	if err != nil || loanID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid loan id", logger)
		return
	}
	var body returnRequestBody
	if err := decodeBody(w, r, &body); err != nil || strings.TrimSpace(body.Email) == "" {
		respondError(w, http.StatusBadRequest, "email is required", logger)
		return
	}

	out, err := a.Returns.Return(r.Context(), loanID, strings.TrimSpace(body.Email))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLoanNotFound):
		respondError(w, http.StatusNotFound, domain.ErrLoanNotFound.Error(), logger)
		return
	default:
		logger.Error("loan return failed", log.Error(err), log.Int64("loan_id", loanID))
		respondError(w, http.StatusInternalServerError, "internal error", logger)
		return
	}
	respondJSON(w, http.StatusOK, returnResponse{Message: "equipment returned", Return: out}, logger)
}

// SystemReport trata GET /api/system-report: valores crus do store compartilhado.
// Leituras que falham viram zero.
func (a *API) SystemReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	load := a.Meter.Load(ctx)
	saturated := a.Meter.Saturated(load)

	rep := systemReport{
		TotalRequests:   a.totalRequests(ctx),
		HotRequestCount: load,
		Threshold:       a.threshold(),
		Saturated:       saturated,
		DataSource:      string(domain.SourceDatabase),
		Instance:        a.InstanceID,
	}
	if saturated {
		rep.DataSource = string(domain.SourceCache)
	}
	if depth, err := a.Queue.Depth(ctx); err == nil {
		rep.QueueDepth = depth
	} else {
		a.logger().Warn("queue depth unavailable", log.Error(err))
	}
	respondJSON(w, http.StatusOK, rep, a.logger())
}

func (a *API) totalRequests(ctx context.Context) int64 {
	if a.Stats == nil {
		return 0
	}
	n, err := a.Stats.TotalRequests(ctx)
	if err != nil {
		a.logger().Warn("total requests unavailable", log.Error(err))
		return 0
	}
	return n
}

func (a *API) threshold() int64 {
	if a.Meter.Threshold > 0 {
		return a.Meter.Threshold
	}
	return application.DefaultSaturationThreshold
}

func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "instance": a.InstanceID}, nil)
}
