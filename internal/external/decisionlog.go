package external

import (
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
)

// DecisionLog records every advisor decision as a JSON line, separate from
// the application log.
type DecisionLog struct {
	logger *zap.Logger
}

// OpenDecisionLog appends to path. An empty path discards entries.
func OpenDecisionLog(path string) (*DecisionLog, error) {
	if path == "" {
		return &DecisionLog{logger: zap.NewNop()}, nil
	}
	logger, err := config.NewLogger("info", "json", path)
	if err != nil {
		return nil, err
	}
	return &DecisionLog{logger: logger}, nil
}

// Record logs the advice given for a pair, or the error that replaced it.
func (d *DecisionLog) Record(advisor string, a, b *contact.Record, score float64, adv Advice, err error) {
	fields := []zap.Field{
		zap.String("advisor", advisor),
		zap.String("uid_a", a.UID()),
		zap.String("uid_b", b.UID()),
		zap.String("name_a", a.FormattedName()),
		zap.String("name_b", b.FormattedName()),
		zap.Float64("similarity", score),
	}
	if err != nil {
		d.logger.Warn("advisor failed", append(fields, zap.Error(err))...)
		return
	}

	prefs := make(map[string]string, len(adv.Preferences))
	for field, side := range adv.Preferences {
		prefs[field] = side.String()
	}
	d.logger.Info("advisor decision", append(fields,
		zap.Bool("duplicate", adv.Duplicate),
		zap.Float64("confidence", adv.Confidence),
		zap.Any("preferences", prefs),
		zap.String("reasoning", adv.Reasoning),
	)...)
}

// Close flushes the log.
func (d *DecisionLog) Close() error {
	return d.logger.Sync()
}
