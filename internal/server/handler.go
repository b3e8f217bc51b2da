package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gridwise/carbonsched/internal/carbon"
	"github.com/gridwise/carbonsched/internal/job"
	"github.com/gridwise/carbonsched/internal/scheduler"
)

type handler struct {
	jobSvc         *job.Service
	engine         *scheduler.Engine
	carbon         *carbon.Client
	hub            *Hub
	defaultRegion  string
	compareRegions []string
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req job.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.jobSvc.Add(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	var (
		jobs []job.Job
		err  error
	)
	if status == "" {
		jobs, err = h.jobSvc.List(r.Context())
	} else {
		jobs, err = h.jobSvc.ListByStatus(r.Context(), job.Status(status))
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *handler) runJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RunJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) evaluate(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		region = h.defaultRegion
	}

	result, err := h.engine.Evaluate(r.Context(), region)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) carbonStatus(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		region = h.defaultRegion
	}
	writeJSON(w, http.StatusOK, h.carbon.FetchIntensity(r.Context(), region))
}

func (h *handler) compareCarbon(w http.ResponseWriter, r *http.Request) {
	regions := h.compareRegions
	if v := r.URL.Query().Get("regions"); v != "" {
		regions = nil
		for _, region := range strings.Split(v, ",") {
			if region = strings.TrimSpace(region); region != "" {
				regions = append(regions, region)
			}
		}
	}
	if len(regions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one region is required")
		return
	}
	writeJSON(w, http.StatusOK, h.carbon.CompareRegions(r.Context(), regions))
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
