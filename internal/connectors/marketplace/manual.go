package marketplace

import (
	"context"
	"time"

	"github.com/ventasync-reconciler/internal/domain/shared"
)

// ManualConnector covers sales entered by hand through the batch endpoint.
// There is no upstream to pull from, so every pull yields nothing.
type ManualConnector struct{}

// NewManualConnector creates the no-op connector for manual sales
func NewManualConnector() *ManualConnector {
	return &ManualConnector{}
}

// Source identifies this connector's marketplace
func (c *ManualConnector) Source() shared.Source {
	return shared.SourceManual
}

// PullOrders always returns an empty page
func (c *ManualConnector) PullOrders(ctx context.Context, since time.Time, pageSize int) ([]Order, error) {
	return nil, nil
}
