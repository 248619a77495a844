package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LazySource builds its SecretSource on first use. A source that cannot be
// constructed then fails only the secrets that need a fetch; callers that
// just re-arm triggers never touch the store.
type LazySource struct {
	name  string
	build func(ctx context.Context) (SecretSource, error)

	once sync.Once
	src  SecretSource
	err  error
}

// NewLazySource returns a source named name that calls build once, on the
// first GetSecret or NextRotationDate. A build error is returned by every call.
func NewLazySource(name string, build func(ctx context.Context) (SecretSource, error)) *LazySource {
	return &LazySource{name: name, build: build}
}

// Name returns the provider type without building the source.
func (l *LazySource) Name() string {
	return l.name
}

func (l *LazySource) get(ctx context.Context) (SecretSource, error) {
	l.once.Do(func() {
		l.src, l.err = l.build(ctx)
		if l.err != nil {
			l.err = fmt.Errorf("failed to create %s provider: %w", l.name, l.err)
		}
	})
	return l.src, l.err
}

// GetSecret builds the source if needed and fetches id.
func (l *LazySource) GetSecret(ctx context.Context, id string) (SecretValue, error) {
	src, err := l.get(ctx)
	if err != nil {
		return SecretValue{}, err
	}
	return src.GetSecret(ctx, id)
}

// NextRotationDate builds the source if needed and reads id's rotation date.
func (l *LazySource) NextRotationDate(ctx context.Context, id string) (*time.Time, error) {
	src, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return src.NextRotationDate(ctx, id)
}
