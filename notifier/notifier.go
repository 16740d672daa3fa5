// Package notifier delivers formatted offer messages to a chat channel.
package notifier

import (
	"context"
	"fmt"

	"car-offers-bot/utils"
)

// Sink accepts one text message per call.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// DeliveryError reports a message the channel did not accept.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// LogSink writes messages to the log instead of a channel. It is used for
// dry runs when no bot token is configured.
type LogSink struct {
	logger *utils.Logger
}

func NewLogSink(logger *utils.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, text string) error {
	s.logger.Info("[notifier] (dry run)\n%s", text)
	return nil
}
