package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type ActivityResponse struct {
	Data   []*activitylog.ActivityLog `json:"data"`
	Total  int64                      `json:"total"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// ActivityController serves the organization activity feed.
type ActivityController struct {
	app             application.Application
	activityService *services.ActivityService
	basePath        string
}

func NewActivityController(app application.Application) application.Controller {
	return &ActivityController{
		app:             app,
		activityService: app.Service(services.ActivityService{}).(*services.ActivityService),
		basePath:        constants.APIPrefix + "/activity",
	}
}

func (c *ActivityController) Key() string {
	return c.basePath
}

func (c *ActivityController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.List).Methods(http.MethodGet)
}

func (c *ActivityController) List(w http.ResponseWriter, r *http.Request) {
	params, err := buildActivityFilters(r)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	logs, total, err := c.activityService.List(r.Context(), params)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*activitylog.ActivityLog{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, ActivityResponse{
		Data:   logs,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

// buildActivityFilters reads actor_id, subject_id, action, from, to, limit and
// offset. Dates are either RFC 3339 timestamps or plain days.
func buildActivityFilters(r *http.Request) (*activitylog.FindParams, error) {
	q := r.URL.Query()
	params := &activitylog.FindParams{Action: strings.TrimSpace(q.Get("action"))}
	invalid := map[string]string{}

	for name, dst := range map[string]**uuid.UUID{"actor_id": &params.ActorID, "subject_id": &params.SubjectID} {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				invalid[name] = "must be a UUID"
				continue
			}
			*dst = &id
		}
	}
	for name, dst := range map[string]**time.Time{"from": &params.From, "to": &params.To} {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			t, err := parseDate(v)
			if err != nil {
				invalid[name] = "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
				continue
			}
			*dst = &t
		}
	}
	for name, dst := range map[string]*int{"limit": &params.Limit, "offset": &params.Offset} {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				invalid[name] = "must be a non-negative integer"
				continue
			}
			*dst = n
		}
	}
	if len(invalid) > 0 {
		return nil, serrors.ValidationFields("INVALID_QUERY", invalid)
	}
	return params, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
