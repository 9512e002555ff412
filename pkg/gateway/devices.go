package gateway

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/germanamz/tradfri/pkg/device"
)

// DefaultConcurrency bounds parallel device fetches in Devices.
const DefaultConcurrency = 4

// Devices fetches every paired device, at most concurrency at a time. Each
// fetch is a separate transport invocation. The result is ordered like
// DeviceIDs. The first failure cancels the remaining fetches.
func (g *Gateway) Devices(ctx context.Context, concurrency int) ([]*device.Device, error) {
	ids, err := g.DeviceIDs(ctx)
	if err != nil {
		return nil, err
	}

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	devices := make([]*device.Device, len(ids))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for i, id := range ids {
		eg.Go(func() error {
			d, err := g.Device(egCtx, id)
			if err != nil {
				return err
			}
			devices[i] = d
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("gateway: devices: %w", err)
	}

	return devices, nil
}
