package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"civreg/internal/platform/kafka/consumer"
)

// TrailHandler persists audit entries consumed from the audit topic. Used by
// deployments where a separate worker owns the durable trail while the API
// nodes only publish.
type TrailHandler struct {
	store  Store
	logger *slog.Logger
}

func NewTrailHandler(store Store, logger *slog.Logger) *TrailHandler {
	return &TrailHandler{store: store, logger: logger}
}

// Handle decodes one topic message and appends it to the trail store.
// Malformed payloads are logged and skipped so one bad record cannot wedge
// the partition.
func (h *TrailHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var entry Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		h.logger.ErrorContext(ctx, "discarding malformed audit message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	if err := h.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append consumed audit entry: %w", err)
	}
	return nil
}
