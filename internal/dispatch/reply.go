package dispatch

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

// replyTimeout bounds one reply delivery.
const replyTimeout = 10 * time.Second

// newReply builds the reply skeleton for msg. It is the only reply value
// ever delivered for that dispatch attempt.
func newReply(msg message.DeviceMessage) message.DeviceMessageReply {
	return message.NewReplyFor(msg)
}

// reply delivers r without blocking the caller. Delivery failures are
// logged and never retried.
func (h *Handler) reply(ctx context.Context, r message.DeviceMessageReply, outcome Outcome) {
	h.recorder.RecordOutcome(r.DeviceID(), outcome, r.Code())

	// Replies still go out while the dispatcher is stopping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()

		if err := h.requests.Reply(ctx, r); err != nil {
			h.logger.Error("reply message failed",
				"device_id", r.DeviceID(),
				"message_id", r.MessageID(),
				"error", err,
			)
			return
		}
		h.logger.Debug("reply message",
			"device_id", r.DeviceID(),
			"message_id", r.MessageID(),
			"success", r.Successful(),
			"code", r.Code(),
		)
	}()
}
