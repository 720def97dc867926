package tlsfileserver

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanj/tlsfileserver/internal/log"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const allowedMethods = "GET, HEAD"

// NewFileHandler serves the files and directory listings under dir for GET
// and HEAD. Other methods get 501 Not Implemented. Every request is logged
// once it completes.
func NewFileHandler(dir string) http.Handler {
	r := mux.NewRouter()
	// http.FileServer cleans the path itself; a router redirect would answer
	// before the method is checked
	r.SkipClean(true)
	r.Methods(http.MethodGet, http.MethodHead).
		MatcherFunc(anyTarget).
		Handler(http.FileServer(http.Dir(dir)))
	r.MethodNotAllowedHandler = http.HandlerFunc(unsupportedMethod)

	// wraps the router: mux middlewares are skipped on method mismatch
	return accessLog(r)
}

// anyTarget matches every request target, "*" included.
func anyTarget(*http.Request, *mux.RouteMatch) bool {
	return true
}

func unsupportedMethod(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	http.Error(w, fmt.Sprintf("Unsupported method ('%s')", r.Method), http.StatusNotImplemented)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := slog.String("request-id", uuid.NewString())
		httpInfo := slog.Group("http-info",
			slog.String("method", r.Method),
			slog.String("url-path", r.URL.Path),
			slog.String("remote-addr", r.RemoteAddr),
		)
		ctx := log.ContextAttrs(r.Context(), requestID, httpInfo)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		// logged with the parent context: the attrs are passed directly so
		// any slog handler records them, and only once
		slog.InfoContext(r.Context(), "request",
			requestID,
			httpInfo,
			slog.Int("status", rec.Status()),
			slog.Int64("bytes", rec.bytes),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

var _ io.ReaderFrom = (*statusRecorder)(nil)

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// ReadFrom keeps the sendfile path of the underlying writer reachable for
// http.FileServer.
func (s *statusRecorder) ReadFrom(r io.Reader) (int64, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := io.Copy(s.ResponseWriter, r)
	s.bytes += n
	return n, err
}

// Status is the code sent to the client, 200 when the handler wrote nothing.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
