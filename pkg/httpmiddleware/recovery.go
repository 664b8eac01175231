package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

const panicResponse = `{"error":"Internal server error","code":"INTERNAL_ERROR"}`

// Recovery returns a middleware that recovers from panics, logs them with
// the stack trace and answers 500 with a JSON body.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
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
				logPanic(log, r, rec)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicResponse))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(log logger.Logger, r *http.Request, rec any) {
	fields := []logger.LogField{
		logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
		logger.HTTPMethodField(r.Method),
		logger.HTTPPathField(r.URL.Path),
		logger.ClientIPField(r.RemoteAddr),
		logger.StringField("stack_trace", string(debug.Stack())),
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, logger.StringField("query_params", r.URL.RawQuery))
	}
	logger.FromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)
}
