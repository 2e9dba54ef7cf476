package twitch

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware wraps a Doer with a cross-cutting concern.
type Middleware func(Doer) Doer

// Chain wraps d so that the first middleware is the outermost.
func Chain(d Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		d = mws[i](d)
	}
	return d
}

// RequestObserver records the outcome of each upstream request.
type RequestObserver interface {
	ObserveRequest(op, status string, elapsed time.Duration)
}

type operationKey struct{}

// WithOperation names the API operation a request performs. Middleware use
// it instead of the URL path, which can carry a channel login.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// Operation returns the name set by WithOperation, or "unknown".
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// RetryMiddleware retries transport failures, 429 and 5xx responses with
// exponential backoff and jitter. Only body-less requests are safe to retry.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			for attempt := 0; ; attempt++ {
				resp, err := next.Do(req)
				if !retryable(resp, err) || attempt >= maxRetries || ctx.Err() != nil {
					return resp, err
				}
				if resp != nil {
					_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
					resp.Body.Close()
				}

				delay := backoff(attempt, baseDelay, maxDelay)
				logger.V(1).Infof("retrying %s %s in %s (attempt %d)", req.Method, req.URL.Path, delay, attempt+1)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
		})
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

func backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := base << uint(attempt)
	// ±25% jitter
	delay = delay + time.Duration(rand.Float64()*float64(delay)*0.5) - delay/4
	if limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

// RateLimitMiddleware paces requests with a token bucket shared by every
// request that passes through it.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.Do(req)
		})
	}
}

// MetricsMiddleware reports each request's status and latency.
func MetricsMiddleware(observer RequestObserver) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)

			status := "error"
			switch {
			case err == nil:
				status = strconv.Itoa(resp.StatusCode)
			case req.Context().Err() == context.DeadlineExceeded:
				status = "timeout"
			}
			if observer != nil {
				observer.ObserveRequest(Operation(req.Context()), status, time.Since(start))
			}
			return resp, err
		})
	}
}

// TracingMiddleware records a client span for each request.
func TracingMiddleware(tracerName string) Middleware {
	tracer := otel.Tracer(tracerName)
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			op := Operation(req.Context())
			ctx, span := tracer.Start(req.Context(), "twitch "+op,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("twitch.operation", op),
				))
			defer span.End()

			resp, err := next.Do(req.WithContext(ctx))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode >= http.StatusBadRequest {
				span.SetStatus(codes.Error, resp.Status)
			}
			return resp, nil
		})
	}
}
