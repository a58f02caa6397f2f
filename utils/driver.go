package utils

import (
	"context"

	"lubimyczytac-exporter/internal/types"
)

// OpenDriver starts one page session. Headless Chrome is used when
// UseHeadlessBrowser is set, plain HTTP otherwise. Callers own the returned
// driver and must Close it.
func OpenDriver(ctx context.Context, config *types.Config, logger types.Logger) (types.Driver, error) {
	if !config.UseHeadlessBrowser {
		logger.Debug("Using static HTTP driver")
		return NewStaticClient(ctx, config, logger), nil
	}

	browser, err := NewBrowserClient(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	return browser, nil
}
