package lifetime

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Cleanup is returned by constructors of services that need to release resources.
// When constructor returns Cleanup it replaces Close of the service.
type Cleanup func()

// CallWithRecovery runs cleanup and turns a panic into an error.
func (fn Cleanup) CallWithRecovery(logger *zap.Logger, service string) (err error) {
	defer func() {
		if rp := recover(); rp != nil {
			err = fmt.Errorf("recovered from panic: %v", rp)
			logger.Error("cleanup function panicked", zap.String("service", service), zap.Any("panic", rp))
		}
	}()

	fn()

	return nil
}

// AsyncCloser is implemented by services that can be released asynchronously.
// CloseAsync of a Scope calls only CloseAsync for such services, never Close.
type AsyncCloser interface {
	CloseAsync(ctx context.Context) error
}

type disposer struct {
	value   any
	cleanup Cleanup
	service string
}

func newDisposer(rec *record, service any, cleanup Cleanup) *disposer {
	if rec.externallyOwned {
		return nil
	}

	if cleanup != nil {
		return &disposer{service: rec.key.String(), cleanup: cleanup}
	}

	switch service.(type) {
	case io.Closer, AsyncCloser:
		return &disposer{service: rec.key.String(), value: service}
	default:
		return nil
	}
}

func (d *disposer) dispose(ctx context.Context, async bool, logger *zap.Logger) (err error) {
	if d.cleanup != nil {
		if err := d.cleanup.CallWithRecovery(logger, d.service); err != nil {
			return newDisposalError(err, d.service)
		}

		return nil
	}

	defer func() {
		if rp := recover(); rp != nil {
			logger.Error("service panicked while closing", zap.String("service", d.service), zap.Any("panic", rp))
			err = fmt.Errorf("recovered from panic: %v", rp)
		}

		if err != nil {
			err = newDisposalError(err, d.service)
		}
	}()

	asyncCloser, canCloseAsync := d.value.(AsyncCloser)
	closer, canClose := d.value.(io.Closer)

	switch {
	case canCloseAsync && (async || !canClose):
		return asyncCloser.CloseAsync(ctx)
	case canClose:
		return closer.Close()
	default:
		return nil
	}
}
