package logic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/health"
	"candlekeep/internal/svc"
	"candlekeep/internal/types"
	"candlekeep/pkg/candle"
)

type SeriesHealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSeriesHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SeriesHealthLogic {
	return &SeriesHealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// SeriesHealth classifies one interval, or all three when none is given.
func (l *SeriesHealthLogic) SeriesHealth(req *types.SeriesHealthReq) (*types.SeriesHealthResp, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, badRequest(errors.New("symbol is required"))
	}

	var statuses []health.Status
	if name := strings.TrimSpace(req.Interval); name != "" && !strings.EqualFold(name, "all") {
		iv, err := candle.ParseInterval(name)
		if err != nil {
			return nil, badRequest(err)
		}
		statuses = []health.Status{l.svcCtx.Health.Check(l.ctx, symbol, iv)}
	} else {
		statuses = l.svcCtx.Health.CheckAll(l.ctx, symbol)
	}

	resp := &types.SeriesHealthResp{Symbol: symbol, Healthy: true}
	for _, st := range statuses {
		resp.Healthy = resp.Healthy && st.Healthy()
		item := types.SeriesHealth{
			Interval: st.Interval.String(),
			State:    string(st.State),
			Reason:   st.Reason,
			Rows:     st.Rows,
			Bytes:    st.Bytes,
		}
		if st.UpdatedAt != nil {
			item.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
		}
		resp.Series = append(resp.Series, item)
	}
	return resp, nil
}
