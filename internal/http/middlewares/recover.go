package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/gatehouse/internal/http/errors"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"go.uber.org/zap"
)

// WithRecover turns a panic into a 500.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
						zap.Stack("stack"),
					)
					httperrors.WriteError(w, httperrors.ErrInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
