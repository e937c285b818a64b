package identitystub

import (
	"context"
	"log/slog"
)

// SMSNotifier delivers OTP codes out-of-band. The stub never talks to a
// real SMS gateway; implementations log or capture the code instead.
type SMSNotifier interface {
	Send(ctx context.Context, phone, code string) error
}

// LoggerNotifier writes OTP codes to the structured logger, which is how a
// developer running the stub reads them back.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the code to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, phone, code string) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("otp sms", "phone", phone, "code", code)
	return nil
}
