package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET "+openAPIPath, handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerStatsRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/stats", handler.LogGameStats)
	mux.HandleFunc("GET /v1/stats/players/{playerID}", handler.GetPlayerStats)
	mux.HandleFunc("GET /v1/stats/teams/{teamID}", handler.GetTeamStats)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/refresh-cache", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunRefreshCacheJob)))
	mux.Handle("POST /v1/internal/jobs/warm-cache", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunWarmCacheJob)))
}
