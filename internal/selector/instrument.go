package selector

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// slowQueryThreshold mirrors the teacher's middleware.SlowQueryThreshold:
// operations slower than this log at WARN instead of INFO, the same
// "wrap, measure, log if slow" shape applied here to resolver calls
// instead of http.Handler.
const slowQueryThreshold = 100 * time.Millisecond

// Instrumented wraps a Selector with structured logging of every Resolve
// call: outcome, provider used, and latency, at WARN when latency exceeds
// slowQueryThreshold and INFO otherwise.
type Instrumented struct {
	*Selector
	logger *slog.Logger
}

func Instrument(s *Selector, logger *slog.Logger) *Instrumented {
	return &Instrumented{Selector: s, logger: logger}
}

func (i *Instrumented) Resolve(ctx context.Context, q model.Query) (model.Result, error) {
	started := time.Now()
	res, err := i.Selector.Resolve(ctx, q)
	elapsed := time.Since(started)

	attrs := []any{
		"lat", q.Lat,
		"lon", q.Lon,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err, "error_kind", model.Kind(err).String())
		i.logger.Error("resolve failed", attrs...)
		return res, err
	}

	attrs = append(attrs, "provider_used", res.ProviderUsed)
	if elapsed > slowQueryThreshold {
		i.logger.Warn("slow resolve", attrs...)
	} else {
		i.logger.Info("resolve", attrs...)
	}
	return res, nil
}
