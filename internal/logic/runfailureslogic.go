package logic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/svc"
	"candlekeep/internal/types"
)

const (
	defaultFailureLimit = 20
	maxFailureLimit     = 200
)

type RunFailuresLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRunFailuresLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RunFailuresLogic {
	return &RunFailuresLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// RunFailures lists recent runs in which the symbol failed, with the
// symbol's own error line.
func (l *RunFailuresLogic) RunFailures(req *types.RunFailuresReq) (*types.RunFailuresResp, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, badRequest(errors.New("symbol is required"))
	}
	summaries, err := l.svcCtx.Runs.Failures(l.ctx, symbol, failureLimit(req.Limit))
	if err != nil {
		return nil, err
	}
	resp := &types.RunFailuresResp{Symbol: symbol, Runs: make([]types.RunFailure, 0, len(summaries))}
	for _, s := range summaries {
		f := types.RunFailure{
			RunId:      s.RunID,
			Kind:       string(s.Kind),
			FinishedAt: s.FinishedAt.UTC().Format(time.RFC3339),
		}
		for _, o := range s.Outcomes {
			if o.Symbol == symbol {
				f.Error = o.Error
				break
			}
		}
		resp.Runs = append(resp.Runs, f)
	}
	return resp, nil
}

func failureLimit(n int) int {
	switch {
	case n <= 0:
		return defaultFailureLimit
	case n > maxFailureLimit:
		return maxFailureLimit
	default:
		return n
	}
}
