package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusRecorder captures the response status and body size as the
// handler writes them.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// NewStatusRecorder wraps w; the status defaults to 200 because
// handlers that never call WriteHeader implicitly return it.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(p []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += int64(n)
	return n, err
}

// Status returns the recorded response status code.
func (sr *StatusRecorder) Status() int { return sr.status }

// BytesWritten returns the number of body bytes sent to the client.
func (sr *StatusRecorder) BytesWritten() int64 { return sr.bytes }

// routeForRequest resolves the route label for a request, falling back
// to the given default when no pattern was matched.
func routeForRequest(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

// HTTPObs publishes per-request counters, latency histograms and an
// in-flight gauge.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware records request outcome metrics labelled by method, route
// pattern and status.
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		o.Metrics.InFlight.Inc()
		next.ServeHTTP(recorder, r)
		o.Metrics.InFlight.Dec()

		route := routeForRequest(r, "unknown")
		o.Metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.Status())).Inc()
		o.Metrics.Latency.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
	})
}

// RoutePatternMiddleware copies the matched chi pattern into the
// request context for middleware that runs before routing completes.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rc := chi.RouteContext(ctx); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				ctx = WithRoutePattern(ctx, pattern)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TracingMiddleware opens a server span per request, named by method
// and route pattern.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("http.server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeForRequest(r, r.URL.Path)
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route)
		defer span.End()

		recorder := NewStatusRecorder(w)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", recorder.Status()),
		)
		if recorder.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.Status()))
		}
	})
}
