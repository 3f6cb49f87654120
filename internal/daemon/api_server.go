package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"powderlab/internal/api"
	"powderlab/internal/blending"
	"powderlab/internal/config"
	"powderlab/internal/inspection"
	"powderlab/internal/logging"
	"powderlab/internal/logs"
	"powderlab/internal/store"
	"powderlab/internal/trace"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/inspections/begin", srv.handleBeginInspection)
	mux.HandleFunc("POST /api/inspections/items", srv.handleSubmitItem)
	mux.HandleFunc("POST /api/inspections/particle-size", srv.handleSubmitParticleSize)
	mux.HandleFunc("GET /api/inspections/incomplete", srv.handleListIncomplete)
	mux.HandleFunc("GET /api/inspections/{powder}/{lot}", srv.handleGetResult)
	mux.HandleFunc("DELETE /api/inspections/{powder}/{lot}", srv.handleDeleteResult)
	mux.HandleFunc("GET /api/results", srv.handleSearchResults)
	mux.HandleFunc("POST /api/blending/works", srv.handleCreateWork)
	mux.HandleFunc("GET /api/blending/works", srv.handleListWorks)
	mux.HandleFunc("GET /api/blending/works/{id}", srv.handleGetWork)
	mux.HandleFunc("POST /api/blending/works/{id}/complete", srv.handleCompleteWork)
	mux.HandleFunc("POST /api/blending/materials", srv.handleConsumeMaterial)
	mux.HandleFunc("GET /api/blending/validate-lot", srv.handleValidateLot)
	mux.HandleFunc("GET /api/trace/backward/{batchLot}", srv.handleBackwardTrace)
	mux.HandleFunc("GET /api/trace/forward", srv.handleForwardTrace)
	mux.HandleFunc("GET /api/trace/search", srv.handleTraceSearch)
	mux.HandleFunc("GET /api/logs", srv.handleLogs)
	mux.HandleFunc("GET /api/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           authMiddleware(cfg.Paths.APIToken, srv.withCorrelation(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type correlationKey struct{}

// withCorrelation tags every request with an identifier that joins the
// access log line to the response payload on errors.
func (s *apiServer) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String(logging.FieldCorrelationID, id),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func (s *apiServer) handleBeginInspection(w http.ResponseWriter, r *http.Request) {
	var req api.BeginInspectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	inspectionType, ok := store.ParseInspectionType(req.InspectionType)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: unknown inspection type %q", inspection.ErrValidation, req.InspectionType))
		return
	}

	resp, err := s.daemon.inspections.Begin(r.Context(), inspection.BeginRequest{
		PowderName:     req.PowderName,
		LotNumber:      req.LotNumber,
		InspectionType: inspectionType,
		Inspector:      req.Inspector,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BeginInspectionResponse{
		State:    string(resp.State),
		Items:    api.FromItems(resp.Items),
		Progress: api.FromProgress(resp.Progress),
		Result:   api.FromResult(resp.Result),
	})
}

func (s *apiServer) handleSubmitItem(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcome, err := s.daemon.inspections.SubmitItem(r.Context(), inspection.ItemRequest{
		PowderName: req.PowderName,
		LotNumber:  req.LotNumber,
		ItemName:   req.ItemName,
		Inspector:  req.Inspector,
		Values:     req.Values,
		Pairs:      req.Pairs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitItemResponse{
		Average:   outcome.Average,
		Result:    string(outcome.Verdict),
		Progress:  outcome.Progress,
		Completed: outcome.Completed,
	})
}

func (s *apiServer) handleSubmitParticleSize(w http.ResponseWriter, r *http.Request) {
	var req api.ParticleSizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	buckets := make([]inspection.ParticleSubmission, len(req.Buckets))
	for i, bucket := range req.Buckets {
		buckets[i] = inspection.ParticleSubmission{
			MeshSize: bucket.MeshSize,
			Value1:   bucket.Value1,
			Value2:   bucket.Value2,
		}
	}
	outcome, err := s.daemon.inspections.SubmitParticleSize(r.Context(), inspection.ParticleRequest{
		PowderName: req.PowderName,
		LotNumber:  req.LotNumber,
		Inspector:  req.Inspector,
		Buckets:    buckets,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ParticleSizeResponse{
		Buckets:   api.FromParticleResults(outcome.Results),
		Result:    string(outcome.Verdict),
		Progress:  outcome.Progress,
		Completed: outcome.Completed,
	})
}

func (s *apiServer) handleListIncomplete(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.inspections.ListIncomplete(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.IncompleteListResponse{Inspections: []api.InspectionProgress{}}
	for _, progress := range list {
		resp.Inspections = append(resp.Inspections, *api.FromProgress(progress))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.inspections.Get(r.Context(), r.PathValue("powder"), r.PathValue("lot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.inspections.Delete(r.Context(), r.PathValue("powder"), r.PathValue("lot")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleSearchResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ResultFilter{
		PowderName: strings.TrimSpace(query.Get("powder")),
		LotNumber:  strings.TrimSpace(query.Get("lot")),
		Finalized:  query.Get("finalized") == "1" || strings.EqualFold(query.Get("finalized"), "true"),
	}
	if value := query.Get("category"); value != "" {
		filter.Category = store.ParseCategory(value)
	}
	for key, dest := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		if raw := strings.TrimSpace(query.Get(key)); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				s.writeError(w, r, fmt.Errorf("%w: %s must be RFC3339", inspection.ErrValidation, key))
				return
			}
			*dest = &parsed
		}
	}

	results, err := s.daemon.inspections.Search(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.ResultListResponse{Results: []api.InspectionResult{}}
	for _, result := range results {
		resp.Results = append(resp.Results, *api.FromResult(result))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCreateWork(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWorkRequest
	if !s.decode(w, r, &req) {
		return
	}
	work, err := s.daemon.blending.CreateWork(r.Context(), blending.CreateWorkRequest{
		ProductName:       req.ProductName,
		ProductCode:       req.ProductCode,
		Operator:          req.Operator,
		TargetTotalWeight: req.TargetTotalWeight,
		MainPowderWeights: req.MainPowderWeights,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromWork(work))
}

func (s *apiServer) handleListWorks(w http.ResponseWriter, r *http.Request) {
	works, err := s.daemon.blending.ListWorks(r.Context(), store.WorkStatus(strings.TrimSpace(r.URL.Query().Get("status"))))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.WorkListResponse{Works: []api.BlendingWork{}}
	for _, work := range works {
		resp.Works = append(resp.Works, api.FromWork(work))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) workID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid work id", blending.ErrValidation))
		return 0, false
	}
	return id, true
}

func (s *apiServer) handleGetWork(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workID(w, r)
	if !ok {
		return
	}
	detail, err := s.daemon.blending.GetWork(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromWorkDetail(detail))
}

func (s *apiServer) handleCompleteWork(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workID(w, r)
	if !ok {
		return
	}
	work, err := s.daemon.blending.CompleteWork(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromWork(work))
}

func (s *apiServer) handleConsumeMaterial(w http.ResponseWriter, r *http.Request) {
	var req api.ConsumeMaterialRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcome, err := s.daemon.blending.ConsumeMaterial(r.Context(), blending.ConsumeRequest{
		BlendingWorkID:   req.BlendingWorkID,
		PowderName:       req.PowderName,
		MaterialLot:      req.MaterialLot,
		ActualWeight:     req.ActualWeight,
		TargetWeight:     req.TargetWeight,
		TolerancePercent: req.TolerancePercent,
		InputBy:          req.InputBy,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ConsumeMaterialResponse{
		WeightDeviation: outcome.WeightDeviation,
		IsValid:         true,
		TargetWeight:    outcome.TargetWeight,
	})
}

func (s *apiServer) handleValidateLot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	err := s.daemon.blending.ValidateLot(r.Context(), query.Get("powder"), query.Get("lot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *apiServer) handleBackwardTrace(w http.ResponseWriter, r *http.Request) {
	backward, err := s.daemon.trace.Backward(r.Context(), r.PathValue("batchLot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBackwardTrace(backward))
}

func (s *apiServer) handleForwardTrace(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	forward, err := s.daemon.trace.Forward(r.Context(), query.Get("powder"), query.Get("lot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromForwardTrace(forward))
}

func (s *apiServer) handleTraceSearch(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.trace.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTraceResult(result))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	offset := int64(-1)
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: offset must be an integer", inspection.ErrValidation))
			return
		}
		offset = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", inspection.ErrValidation))
			return
		}
		limit = parsed
	}

	lines, next, err := logs.Read(logs.Path(s.daemon.cfg.Paths.LogDir), offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.LogsResponse{Lines: lines, Offset: next})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		s.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error:         fmt.Sprintf("invalid request body: %v", err),
			CorrelationID: correlationID(r.Context()),
		})
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP statuses: validation
// and parse failures are 400, missing records 404, business-rule
// rejections 422, exhausted lock-conflict retries 503.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	payload := api.ErrorResponse{
		Error:         err.Error(),
		CorrelationID: correlationID(r.Context()),
	}

	status := http.StatusInternalServerError
	var tolErr *blending.ToleranceError
	switch {
	case errors.As(err, &tolErr):
		status = http.StatusUnprocessableEntity
		payload.Deviation = &tolErr.Deviation
	case errors.Is(err, blending.ErrUnknownLot),
		errors.Is(err, blending.ErrWrongMaterial),
		errors.Is(err, blending.ErrFailedLot),
		errors.Is(err, blending.ErrIncompleteWork):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, inspection.ErrValidation),
		errors.Is(err, inspection.ErrNoItems),
		errors.Is(err, inspection.ErrNoValidMeasurements),
		errors.Is(err, blending.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, trace.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String(logging.FieldCorrelationID, payload.CorrelationID),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", logging.Error(err))
	}
}
