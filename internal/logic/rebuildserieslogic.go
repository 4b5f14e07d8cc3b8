package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/svc"
	"candlekeep/internal/types"
	"candlekeep/pkg/candle"
)

type RebuildSeriesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRebuildSeriesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RebuildSeriesLogic {
	return &RebuildSeriesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *RebuildSeriesLogic) RebuildSeries(req *types.RebuildSeriesReq) (*types.RebuildSeriesResp, error) {
	var interval *candle.Interval
	name := strings.ToLower(strings.TrimSpace(req.Interval))
	if name != "" && name != "all" {
		iv, err := candle.ParseInterval(name)
		if err != nil {
			return nil, badRequest(err)
		}
		interval = &iv
		name = iv.String()
	} else {
		name = "all"
	}

	results, err := l.svcCtx.Runner.RebuildSymbol(l.ctx, req.Symbol, interval)
	if err != nil {
		l.Errorf("rebuild %s %s: %v", req.Symbol, name, err)
		return nil, err
	}

	resp := &types.RebuildSeriesResp{
		Symbol:   strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Interval: name,
		Results:  make([]types.RebuildResult, 0, len(results)),
	}
	for _, r := range results {
		resp.Rows += r.Rows
		resp.Results = append(resp.Results, types.RebuildResult{
			Interval: r.Interval.String(),
			Rows:     r.Rows,
			Dropped:  r.Dropped,
		})
	}
	return resp, nil
}
