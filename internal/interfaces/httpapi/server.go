package httpapi

import (
	"net/http"

	"github.com/riskibarqy/live-links/internal/platform/logging"
)

type RouterConfig struct {
	CORSAllowedOrigins []string
	AdminToken         string
	ProxyPath          string
}

// NewRouter mounts the trigger endpoints, the stream relay and the optional
// metrics handler. proxy and metrics may be nil.
func NewRouter(
	handler *Handler,
	proxy http.Handler,
	metrics http.Handler,
	logger *logging.Logger,
	cfg RouterConfig,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ProxyPath == "" {
		cfg.ProxyPath = "/proxy"
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, metrics)
	registerTriggerRoutes(mux, handler, cfg.AdminToken)
	registerProxyRoutes(mux, proxy, cfg.ProxyPath)

	return RequestTracing(cfg.ProxyPath, RequestLogging(logger, CORS(cfg.CORSAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(ctx, "panic recovered", "panic", rec, "path", r.URL.Path)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
