package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/ministryhub/checkin-rollup/pkg/app/errors"
	apphttp "github.com/ministryhub/checkin-rollup/pkg/app/http"
	"github.com/ministryhub/checkin-rollup/pkg/checkin"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	loc     *time.Location
	logger  *zap.Logger
}

type summariesResponse struct {
	MinistryID string                  `json:"ministry_id"`
	Summaries  []*checkin.DailySummary `json:"summaries"`
}

type checkInsResponse struct {
	MemberID   string           `json:"member_id,omitempty"`
	MinistryID string           `json:"ministry_id,omitempty"`
	CheckIns   []*checkin.Event `json:"checkins"`
}

type historyResponse struct {
	MemberID string               `json:"member_id"`
	Days     []*checkin.MemberDay `json:"days"`
}

type attendanceResponse struct {
	MinistryID string              `json:"ministry_id"`
	Days       []*checkin.DayTotal `json:"days"`
}

// RegisterRoutes registers the check-in endpoints on the given chi router.
// Query dates are calendar days in loc.
func RegisterRoutes(r chi.Router, service Service, loc *time.Location, logger *zap.Logger) {
	if loc == nil {
		loc = time.UTC
	}
	h := &HTTP{
		service: service,
		loc:     loc,
		logger:  logger,
	}

	r.Post("/checkins", apphttp.HandleError(h.recordCheckIn))
	r.Route("/ministries/{ministryID}", func(r chi.Router) {
		r.Get("/checkins", apphttp.HandleError(h.listMinistryCheckIns))
		r.Get("/summaries", apphttp.HandleError(h.listSummaries))
		r.Get("/attendance", apphttp.HandleError(h.attendance))
	})
	r.Route("/members/{memberID}", func(r chi.Router) {
		r.Get("/checkins", apphttp.HandleError(h.listMemberCheckIns))
		r.Get("/history", apphttp.HandleError(h.memberHistory))
	})
}

func (h *HTTP) recordCheckIn(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req RecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	ev, err := h.service.RecordCheckIn(r.Context(), &req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusCreated, ev)
	return nil
}

func (h *HTTP) listMemberCheckIns(w http.ResponseWriter, r *http.Request) error {
	q, err := h.checkInQuery(r)
	if err != nil {
		return err
	}
	q.MemberID = chi.URLParam(r, "memberID")
	q.MinistryID = r.URL.Query().Get("ministry_id")
	return h.listCheckIns(w, r, q)
}

func (h *HTTP) listMinistryCheckIns(w http.ResponseWriter, r *http.Request) error {
	q, err := h.checkInQuery(r)
	if err != nil {
		return err
	}
	q.MinistryID = chi.URLParam(r, "ministryID")
	q.MemberID = r.URL.Query().Get("member_id")
	return h.listCheckIns(w, r, q)
}

func (h *HTTP) listCheckIns(w http.ResponseWriter, r *http.Request, q *CheckInQuery) error {
	events, err := h.service.ListCheckIns(r.Context(), q)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*checkin.Event{}
	}

	apphttp.WriteJSON(w, http.StatusOK, &checkInsResponse{MemberID: q.MemberID, MinistryID: q.MinistryID, CheckIns: events})
	return nil
}

func (h *HTTP) memberHistory(w http.ResponseWriter, r *http.Request) error {
	memberID := chi.URLParam(r, "memberID")
	from, to, err := h.dateRange(r)
	if err != nil {
		return err
	}

	days, err := h.service.MemberHistory(r.Context(), memberID, from, to)
	if err != nil {
		return err
	}
	if days == nil {
		days = []*checkin.MemberDay{}
	}

	apphttp.WriteJSON(w, http.StatusOK, &historyResponse{MemberID: memberID, Days: days})
	return nil
}

// checkInQuery parses the date range and the optional limit of a listing.
func (h *HTTP) checkInQuery(r *http.Request) (*CheckInQuery, error) {
	from, to, err := h.dateRange(r)
	if err != nil {
		return nil, err
	}
	q := &CheckInQuery{From: from, To: to}
	if v := r.URL.Query().Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return nil, apperrors.BadRequestError(err, "limit must be a number")
		}
	}
	return q, nil
}

func (h *HTTP) listSummaries(w http.ResponseWriter, r *http.Request) error {
	ministryID := chi.URLParam(r, "ministryID")
	from, to, err := h.dateRange(r)
	if err != nil {
		return err
	}

	summaries, err := h.service.ListSummaries(r.Context(), ministryID, from, to)
	if err != nil {
		return err
	}
	if summaries == nil {
		summaries = []*checkin.DailySummary{}
	}

	apphttp.WriteJSON(w, http.StatusOK, &summariesResponse{MinistryID: ministryID, Summaries: summaries})
	return nil
}

func (h *HTTP) attendance(w http.ResponseWriter, r *http.Request) error {
	ministryID := chi.URLParam(r, "ministryID")
	from, to, err := h.dateRange(r)
	if err != nil {
		return err
	}

	days, err := h.service.Attendance(r.Context(), ministryID, from, to)
	if err != nil {
		return err
	}
	if days == nil {
		days = []*checkin.DayTotal{}
	}

	apphttp.WriteJSON(w, http.StatusOK, &attendanceResponse{MinistryID: ministryID, Days: days})
	return nil
}

// dateRange parses the optional from/to query parameters (YYYY-MM-DD).
func (h *HTTP) dateRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.ParseInLocation(time.DateOnly, v, h.loc); err != nil {
			return time.Time{}, time.Time{}, apperrors.BadRequestError(err, "from must be YYYY-MM-DD")
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.ParseInLocation(time.DateOnly, v, h.loc); err != nil {
			return time.Time{}, time.Time{}, apperrors.BadRequestError(err, "to must be YYYY-MM-DD")
		}
	}
	return from, to, nil
}
