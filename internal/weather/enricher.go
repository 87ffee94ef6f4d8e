// internal/weather/enricher.go
package weather

import (
	"context"

	"github.com/tamzrod/pv-reporter/internal/fault"
)

// Source is anything that can look up current conditions.
type Source interface {
	Current(ctx context.Context) (Observation, error)
}

// Enricher refreshes weather once per cycle, best effort.
// A nil *Enricher is valid: weather disabled, always stale.
type Enricher struct {
	src Source
}

func NewEnricher(src Source) *Enricher {
	if src == nil {
		return nil
	}
	return &Enricher{src: src}
}

// Refresh returns a fresh observation, or a stale zero value and a
// fault.Weather error. Failure never leaks past the current cycle.
func (e *Enricher) Refresh(ctx context.Context) (Observation, error) {
	if e == nil || e.src == nil {
		return Observation{}, nil
	}
	obs, err := e.src.Current(ctx)
	if err != nil {
		return Observation{}, fault.New(fault.Weather, "", err)
	}
	obs.Fresh = true
	return obs, nil
}
