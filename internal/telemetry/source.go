package telemetry

import (
	"context"

	"github.com/leonardotrapani/hyprscribe/internal/engine"
)

type instrumentedSource struct {
	engine.Source
	metrics *Metrics
}

// InstrumentSource counts every result and error flowing out of src.
func (m *Metrics) InstrumentSource(src engine.Source) engine.Source {
	return &instrumentedSource{Source: src, metrics: m}
}

func (s *instrumentedSource) Start(ctx context.Context) (<-chan engine.Result, error) {
	in, err := s.Source.Start(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan engine.Result)
	go func() {
		defer close(out)
		for r := range in {
			if r.Err != nil {
				s.metrics.RecordSourceError(ctx)
			} else {
				s.metrics.RecordResult(ctx, r.IsFinal)
			}
			select {
			case out <- r:
			case <-ctx.Done():
				// keep draining so the wrapped source can finish
			}
		}
	}()
	return out, nil
}
