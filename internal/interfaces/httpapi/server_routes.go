package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics == nil {
		return
	}

	mux.Handle("GET /metrics", metrics)
}

func registerTriggerRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("POST /v1/scan", RequireAdminToken(adminToken, http.HandlerFunc(handler.RunScan)))
	mux.Handle("GET /v1/scraped-links", RequireAdminToken(adminToken, http.HandlerFunc(handler.ListScrapedLinks)))
	mux.Handle("POST /v1/links/assign", RequireAdminToken(adminToken, http.HandlerFunc(handler.RunAssign)))
	mux.Handle("POST /v1/links/health-check", RequireAdminToken(adminToken, http.HandlerFunc(handler.RunHealthCheck)))
}

// The relay is public; players fetch manifests and segments without credentials.
// GET patterns also match HEAD.
func registerProxyRoutes(mux *http.ServeMux, proxy http.Handler, proxyPath string) {
	if proxy == nil {
		return
	}

	mux.Handle("GET "+proxyPath, proxy)
}
