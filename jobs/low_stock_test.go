package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/central-erp/central-erp/internal/stock"
)

type flaggedRepo struct {
	items []stock.LowStockItem
}

func (r *flaggedRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx stock.TxRepository) error) error {
	return errors.New("not supported")
}

func (r *flaggedRepo) ListMovements(ctx context.Context, filters stock.MovementFilters) ([]stock.Movement, int, error) {
	return nil, 0, nil
}

func (r *flaggedRepo) GetMovement(ctx context.Context, id uuid.UUID) (stock.Movement, error) {
	return stock.Movement{}, errors.New("not supported")
}

func (r *flaggedRepo) LowStock(ctx context.Context) ([]stock.LowStockItem, error) {
	return r.items, nil
}

type recordingMailer struct {
	sent []SendEmailPayload
}

func (m *recordingMailer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func TestRunLowStockScanQueuesAlerts(t *testing.T) {
	repo := &flaggedRepo{items: []stock.LowStockItem{
		{ProductID: uuid.New(), SKU: "SKU-001", Name: "Arroz 5kg", CurrentQty: 2, MinStock: 5},
		{ProductID: uuid.New(), SKU: "SKU-002", Name: "Feijao 1kg", CurrentQty: 0, MinStock: 10},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stock.NewService(logger, repo, nil, time.Minute)

	mailer := &recordingMailer{}
	require.NoError(t, RunLowStockScan(context.Background(), logger, svc, mailer, "estoque@example.com"))

	require.Len(t, mailer.sent, 2)
	require.Equal(t, "estoque@example.com", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "SKU-001")
	require.True(t, strings.Contains(mailer.sent[1].Body, "below its minimum"))
}

func TestRunLowStockScanWithoutRecipient(t *testing.T) {
	repo := &flaggedRepo{items: []stock.LowStockItem{
		{ProductID: uuid.New(), SKU: "SKU-001", Name: "Arroz 5kg", CurrentQty: 2, MinStock: 5},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stock.NewService(logger, repo, nil, time.Minute)

	mailer := &recordingMailer{}
	require.NoError(t, RunLowStockScan(context.Background(), logger, svc, mailer, ""))
	require.Empty(t, mailer.sent)
}
