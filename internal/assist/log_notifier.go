package assist

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier records document updates in the log. It stands in for a
// language server client when none is attached.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("assist")}
}

func (n *LogNotifier) UpdateDocument(_ context.Context, uri, content string, version int64) error {
	n.logger.Debug("document updated",
		zap.String("uri", uri),
		zap.Int64("version", version),
		zap.Int("bytes", len(content)))
	return nil
}
