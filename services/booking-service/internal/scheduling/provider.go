package scheduling

import (
	"context"

	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
)

// Provider supplies the current salon configuration.
type Provider interface {
	Snapshot(ctx context.Context) (salonconfig.Snapshot, error)
}

type staticProvider struct {
	snap salonconfig.Snapshot
}

// NewStaticProvider always returns snap.
func NewStaticProvider(snap salonconfig.Snapshot) Provider {
	return &staticProvider{snap: snap}
}

func (p *staticProvider) Snapshot(context.Context) (salonconfig.Snapshot, error) {
	return p.snap, nil
}

type deadlineOverride struct {
	inner Provider
	hours int
}

// WithDeadlineHours pins the cancellation deadline regardless of what inner reports.
func WithDeadlineHours(inner Provider, hours int) Provider {
	if hours <= 0 {
		return inner
	}
	return &deadlineOverride{inner: inner, hours: hours}
}

func (p *deadlineOverride) Snapshot(ctx context.Context) (salonconfig.Snapshot, error) {
	snap, err := p.inner.Snapshot(ctx)
	if err != nil {
		return snap, err
	}
	snap.Settings.CancellationDeadlineHours = p.hours
	return snap, nil
}
