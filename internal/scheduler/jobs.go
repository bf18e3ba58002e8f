package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/smallbiznis/crm/internal/config"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
)

const (
	JobLowStockReplenish = "low_stock_replenish"
	JobHeartbeat         = "heartbeat"
	JobOrderReminders    = "order_reminders"
)

const (
	stampLayout     = "2006-01-02 15:04:05"
	heartbeatLayout = "02/01/2006-15:04:05"
)

// lowStockJob replenishes products below the configured threshold and logs
// one line per updated product.
func (s *Scheduler) lowStockJob(ctx context.Context, run *jobRun, cfg config.JobsConfig) error {
	stamp := "[" + s.clock.Now().Format(stampLayout) + "]"

	result, err := s.productSvc.ReplenishLowStock(ctx, productdomain.ReplenishRequest{
		Threshold:     cfg.LowStock.Threshold,
		RestockAmount: cfg.LowStock.RestockAmount,
		Trigger:       run.trigger,
	})

	var updated []string
	if result != nil {
		ids := make([]string, 0, len(result.Products))
		for _, p := range result.Products {
			updated = append(updated, fmt.Sprintf("%s Updated product: %s - New stock: %d", stamp, p.Name, p.Stock))
			ids = append(ids, p.ID)
		}
		run.AddProcessed(len(result.Products))
		if len(ids) > 0 {
			run.SetDetail("product_ids", ids)
		}
		s.metrics.AddItemsProcessed(run.job, "products", len(result.Products))
	}
	run.SetDetail("threshold", cfg.LowStock.Threshold)
	run.SetDetail("restock_amount", cfg.LowStock.RestockAmount)

	var head string
	if err != nil {
		head = fmt.Sprintf(productdomain.MsgReplenishFailFmt, err)
	} else {
		head = result.Message
	}
	run.message = head

	lines := append([]string{stamp + " " + head}, updated...)
	if sinkErr := s.sink.Append(ctx, cfg.LowStock.LogPath, lines); sinkErr != nil {
		run.IncError()
		if err == nil {
			return fmt.Errorf("append low stock log: %w", sinkErr)
		}
	}
	return err
}

// heartbeatJob appends one liveness line. It never mutates state.
func (s *Scheduler) heartbeatJob(ctx context.Context, run *jobRun, cfg config.JobsConfig) error {
	line := s.HeartbeatLine(ctx, cfg.Heartbeat.ProbeURL)
	run.message = line
	run.AddProcessed(1)
	return s.sink.Append(ctx, cfg.Heartbeat.LogPath, []string{line})
}

// HeartbeatLine formats the liveness line, probing probeURL when set.
func (s *Scheduler) HeartbeatLine(ctx context.Context, probeURL string) string {
	line := s.clock.Now().Format(heartbeatLayout) + " CRM is alive"
	if probeURL == "" {
		return line
	}

	status, err := s.probe(ctx, probeURL)
	if err != nil {
		return line + " - API check failed: " + err.Error()
	}
	return line + " - API response: " + status
}

func (s *Scheduler) probe(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return strconv.Itoa(resp.StatusCode), nil
}

// orderRemindersJob logs every order placed inside the lookback window.
func (s *Scheduler) orderRemindersJob(ctx context.Context, run *jobRun, cfg config.JobsConfig) error {
	now := s.clock.Now()
	reminders, err := s.orderSvc.ListReminders(ctx, now.Add(-cfg.Reminders.Lookback))
	if err != nil {
		return fmt.Errorf("list order reminders: %w", err)
	}

	stamp := now.Format(stampLayout)
	lines := make([]string, 0, len(reminders))
	for _, r := range reminders {
		lines = append(lines, fmt.Sprintf("%s - Order %s: %s", stamp, r.OrderID, r.CustomerEmail))
	}
	run.AddProcessed(len(reminders))
	run.message = fmt.Sprintf("Processed %d order reminders", len(reminders))
	run.SetDetail("lookback", cfg.Reminders.Lookback.String())
	s.metrics.AddItemsProcessed(run.job, "orders", len(reminders))

	return s.sink.Append(ctx, cfg.Reminders.LogPath, lines)
}
