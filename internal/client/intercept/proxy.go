package intercept

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/server/middleware"
)

// MessagesPath is where the proxy streams cross-context messages
const MessagesPath = "/_offsync/messages"

// NewProxy returns a reverse proxy to target that routes every request
// through ic and serves the message stream on MessagesPath.
func NewProxy(target *url.URL, ic *Interceptor, messages *bus.Bus[bus.Message], logger *slog.Logger) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: ic,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WarnContext(r.Context(), "Upstream request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}

	mux := http.NewServeMux()
	if messages != nil {
		mux.Handle(MessagesPath, bus.Handler(messages, logger))
	}
	mux.Handle("/", rp)

	var handler http.Handler = mux
	handler = middleware.Logging(logger, middleware.LogConfig{
		SkipPaths: []string{MessagesPath},
		ResponseHeaders: map[string]string{
			StrategyHeader: "strategy",
			CacheHeader:    "cache",
		},
	})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)
	return handler
}
