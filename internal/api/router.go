package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the read-only HTTP surface. All cluster state routes
// live under /api; /healthz and /metrics serve the process itself.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/clusters", func(r chi.Router) {
		r.Get("/", handler.listClusters)
		r.Route("/{cluster}", func(r chi.Router) {
			r.Get("/", handler.describeCluster)
			r.Post("/test", handler.testConnection)
			r.Get("/brokers/{broker}/configs", handler.describeBrokerConfigs)
			r.Get("/topics", handler.listTopics)
			r.Get("/topics/{topic}", handler.describeTopic)
			r.Get("/topics/{topic}/configs", handler.describeTopicConfigs)
			r.Get("/topics/{topic}/partitions/{partition}/messages", handler.sampleMessages)
			r.Get("/groups", handler.listGroups)
			r.Get("/groups/{group}", handler.describeGroup)
			r.Get("/groups/{group}/lag", handler.groupLag)
		})
	})

	return r
}
