package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/central-erp/central-erp/internal/stock"
)

// EmailEnqueuer queues transactional mail; Client satisfies it.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// RunLowStockScan refreshes the low stock report and queues one alert mail
// per flagged product. Going through the service keeps the cached report
// warm for the API; without a recipient the scan only logs.
func RunLowStockScan(ctx context.Context, logger *slog.Logger, svc *stock.Service, mailer EmailEnqueuer, recipient string) error {
	items, err := svc.LowStock(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		logger.Warn("product below minimum stock",
			slog.String("product_id", item.ProductID.String()),
			slog.String("sku", item.SKU),
			slog.Int64("current_qty", item.CurrentQty),
			slog.Int64("min_stock", item.MinStock))
		if mailer == nil || recipient == "" {
			continue
		}
		payload := SendEmailPayload{
			To:      recipient,
			Subject: fmt.Sprintf("Low stock: %s (%s)", item.Name, item.SKU),
			Body: fmt.Sprintf("Product %s (%s) is at %d units, below its minimum of %d.",
				item.Name, item.SKU, item.CurrentQty, item.MinStock),
		}
		if _, err := mailer.EnqueueSendEmail(ctx, payload); err != nil {
			logger.Warn("low stock alert enqueue failed",
				slog.String("sku", item.SKU), slog.Any("error", err))
		}
	}
	logger.Info("low stock scan finished", slog.Int("flagged", len(items)))
	return nil
}
