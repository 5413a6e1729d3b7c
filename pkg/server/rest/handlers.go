package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/kv"
	"lintang/runpathx/pkg/runpath"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/server/rest/service"
	"lintang/runpathx/pkg/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

type RunService interface {
	MatchRun(ctx context.Context, id string, points []datastructure.Coordinate, times []float64) (service.MatchResult, error)
	GetRun(ctx context.Context, id string) (kv.RunRecord, error)
	NearbyRuns(ctx context.Context, lat, lon, radiusKm float64) ([]kv.RunRecord, error)
	ShortestPath(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64) (service.RouteResult, error)
	GraphStats(ctx context.Context) datastructure.GraphStats
}

type RunHandler struct {
	svc            RunService
	promeMetrics   *metrics
	nearbyRadiusKm float64
}

func RunRouter(r *chi.Mux, svc RunService, m *metrics, nearbyRadiusKm float64) {
	handler := &RunHandler{svc, m, nearbyRadiusKm}

	r.Group(func(r chi.Router) {
		r.Route("/api/runs", func(r chi.Router) {
			r.Post("/match", handler.matchRun)
			r.Get("/nearby", handler.nearbyRuns)
			r.Get("/{id}", handler.getRun)
		})
		r.Post("/api/routes/shortest-path", handler.shortestPath)
		r.Get("/api/graph", handler.graphStats)
	})
}

type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// MatchRunRequest a GPS trace to align onto the graph. Times, when given, are seconds aligned with
// Coordinates.
type MatchRunRequest struct {
	ID          string    `json:"id" validate:"omitempty,max=128"`
	Coordinates []Coord   `json:"coordinates" validate:"required,min=1,dive"`
	Times       []float64 `json:"times"`
}

func (s *MatchRunRequest) Bind(r *http.Request) error {
	if len(s.Coordinates) == 0 {
		return errors.New("invalid request: coordinates is empty")
	}
	return nil
}

type MatchRunResponse struct {
	ID            string                     `json:"id"`
	StartNode     int64                      `json:"start_node"`
	EndNode       int64                      `json:"end_node"`
	NodeSequence  []int64                    `json:"node_sequence"`
	Stats         runpath.Stats              `json:"stats"`
	Polyline      string                     `json:"polyline"`
	NumFallbacks  int                        `json:"num_fallbacks"`
	SnappedPoints []datastructure.Coordinate `json:"snapped_points"`
}

func NewMatchRunResponse(res service.MatchResult) *MatchRunResponse {
	summary := res.Run.Summary()
	return &MatchRunResponse{
		ID:            res.Record.ID,
		StartNode:     summary.StartNode,
		EndNode:       summary.EndNode,
		NodeSequence:  summary.NodeSequence,
		Stats:         summary.Stats,
		Polyline:      res.Record.Polyline,
		NumFallbacks:  res.Fallbacks,
		SnappedPoints: res.Run.SnappedPoints(),
	}
}

func (h *RunHandler) matchRun(w http.ResponseWriter, r *http.Request) {
	data := &MatchRunRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, data) {
		return
	}

	points := make([]datastructure.Coordinate, len(data.Coordinates))
	for i, c := range data.Coordinates {
		points[i] = datastructure.NewCoordinate(c.Lat, c.Lon)
	}

	res, err := h.svc.MatchRun(r.Context(), data.ID, points, data.Times)
	if err != nil {
		h.promeMetrics.MatchCount.WithLabelValues("error").Inc()
		render.Render(w, r, ErrChi(err))
		return
	}
	h.promeMetrics.MatchCount.WithLabelValues("ok").Inc()
	h.promeMetrics.SnapFallbacks.Add(float64(res.Fallbacks))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewMatchRunResponse(res))
}

func (h *RunHandler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, rec)
}

type NearbyRunsRequest struct {
	Lat      float64 `validate:"gte=-90,lte=90"`
	Lon      float64 `validate:"gte=-180,lte=180"`
	RadiusKm float64 `validate:"gt=0,lte=50"`
}

type NearbyRunsResponse struct {
	Runs []kv.RunRecord `json:"runs"`
}

func parseQueryFloat(r *http.Request, name string, def *float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if def != nil {
			return *def, nil
		}
		return 0, fmt.Errorf("query parameter %s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s is not a number", name)
	}
	return v, nil
}

func (h *RunHandler) nearbyRuns(w http.ResponseWriter, r *http.Request) {
	data := &NearbyRunsRequest{}
	var err error
	if data.Lat, err = parseQueryFloat(r, "lat", nil); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if data.Lon, err = parseQueryFloat(r, "lon", nil); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if data.RadiusKm, err = parseQueryFloat(r, "radius_km", &h.nearbyRadiusKm); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, data) {
		return
	}

	runs, err := h.svc.NearbyRuns(r.Context(), data.Lat, data.Lon, data.RadiusKm)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &NearbyRunsResponse{Runs: runs})
}

type ShortestPathRequest struct {
	SrcLat float64 `json:"src_lat" validate:"required,lt=90,gt=-90"`
	SrcLon float64 `json:"src_lon" validate:"required,lt=180,gt=-180"`
	DstLat float64 `json:"dst_lat" validate:"required,lt=90,gt=-90"`
	DstLon float64 `json:"dst_lon" validate:"required,lt=180,gt=-180"`
}

func (s *ShortestPathRequest) Bind(r *http.Request) error {
	if s.SrcLat == 0 || s.SrcLon == 0 || s.DstLat == 0 || s.DstLon == 0 {
		return errors.New("invalid request")
	}
	return nil
}

type ShortestPathResponse struct {
	Path  string  `json:"path"`
	Dist  float64 `json:"distance"`
	Nodes []int64 `json:"nodes"`
	Found bool    `json:"found"`
}

func NewShortestPathResponse(res service.RouteResult) *ShortestPathResponse {
	return &ShortestPathResponse{
		Path:  res.Polyline,
		Dist:  util.RoundFloat(res.DistanceM, 2),
		Nodes: res.Nodes,
		Found: true,
	}
}

func (h *RunHandler) shortestPath(w http.ResponseWriter, r *http.Request) {
	data := &ShortestPathRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, data) {
		return
	}

	res, err := h.svc.ShortestPath(r.Context(), data.SrcLat, data.SrcLon, data.DstLat, data.DstLon)
	if err != nil {
		h.promeMetrics.SPQueryCount.WithLabelValues("false").Inc()
		render.Render(w, r, ErrChi(err))
		return
	}
	h.promeMetrics.SPQueryCount.WithLabelValues("true").Inc()

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewShortestPathResponse(res))
}

func (h *RunHandler) graphStats(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.svc.GraphStats(r.Context()))
}

// validateRequest renders the translated validation errors and returns false when data is invalid.
func validateRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	validate := validator.New()
	if err := validate.Struct(data); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		render.Render(w, r, ErrValidation(err, vv))
		return false
	}
	return true
}

type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	AppCode       int64    `json:"code,omitempty"`  // application-specific error code
	ErrorText     string   `json:"error,omitempty"` // application-level error message, for debugging
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := []string{}
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrChi(err error) render.Renderer {
	code := getStatusCode(err)
	statusText := ""
	switch code {
	case http.StatusNotFound:
		statusText = "Resource not found."
	case http.StatusInternalServerError:
		statusText = "Internal server error."
	case http.StatusBadRequest:
		statusText = "Bad request."
	case http.StatusUnprocessableEntity:
		statusText = "Run could not be matched."
	default:
		statusText = "Error."
	}

	errorText := err.Error()
	if code == http.StatusInternalServerError {
		errorText = server.MessageInternalServerError
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		StatusText:     statusText,
		ErrorText:      errorText,
	}
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ierr *server.Error
	if !errors.As(err, &ierr) {
		return http.StatusInternalServerError
	}
	switch ierr.Code() {
	case server.ErrInput, server.ErrBadParamInput:
		return http.StatusBadRequest
	case server.ErrNotFound:
		return http.StatusNotFound
	case server.ErrProcessing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func translateError(err error, trans ut.Translator) (errs []error) {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
