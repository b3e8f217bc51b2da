package server

import (
	"net/http"

	"github.com/gridwise/carbonsched/internal/carbon"
	"github.com/gridwise/carbonsched/internal/job"
	"github.com/gridwise/carbonsched/internal/scheduler"
)

// Options carries the transport-level configuration.
type Options struct {
	DefaultRegion  string
	CompareRegions []string
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(jobSvc *job.Service, engine *scheduler.Engine, carbonClient *carbon.Client, hub *Hub, opts Options) http.Handler {
	return newMux(jobSvc, engine, carbonClient, hub, opts)
}

func newMux(jobSvc *job.Service, engine *scheduler.Engine, carbonClient *carbon.Client, hub *Hub, opts Options) http.Handler {
	h := &handler{
		jobSvc:         jobSvc,
		engine:         engine,
		carbon:         carbonClient,
		hub:            hub,
		defaultRegion:  opts.DefaultRegion,
		compareRegions: opts.CompareRegions,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/v1/jobs", h.createJob)
	mux.HandleFunc("GET /api/v1/jobs", h.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.getJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/run", h.runJob)
	mux.HandleFunc("POST /api/v1/evaluate", h.evaluate)
	mux.HandleFunc("GET /api/v1/carbon", h.carbonStatus)
	mux.HandleFunc("GET /api/v1/carbon/compare", h.compareCarbon)
	mux.HandleFunc("GET /api/v1/dashboard", h.dashboard)
	mux.HandleFunc("GET /api/v1/ws", h.serveWS)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
