package runs

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/batch"
	"candlekeep/pkg/journal"
)

// JournalRecorder writes each summary to its own JSON file.
type JournalRecorder struct {
	w *journal.Writer
}

// NewJournalRecorder writes under dir.
func NewJournalRecorder(dir string) *JournalRecorder {
	return &JournalRecorder{w: journal.NewWriter(dir)}
}

// Record implements batch.Recorder.
func (j *JournalRecorder) Record(ctx context.Context, summary batch.RunSummary) error {
	path, err := j.w.Write("run_"+string(summary.Kind), summary.FinishedAt, summary)
	if err != nil {
		return err
	}
	logx.WithContext(ctx).Debugf("runs: journal run=%s path=%s", summary.RunID, path)
	return nil
}
