package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/vadimbarashkov/shortlink/pkg/middleware"
	"github.com/vadimbarashkov/shortlink/pkg/response"
)

// New returns a middleware that turns a handler panic into a logged JSON 500.
// http.ErrAbortHandler is re-raised so that net/http can abort the connection.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error(
					"something went wrong, panic occurred",
					slog.Group(op,
						slog.Any("err", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					),
				)

				response.Render(w, r, http.StatusInternalServerError, response.ServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
