package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/svc"
	"candlekeep/internal/types"
)

type UpdateSeriesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewUpdateSeriesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *UpdateSeriesLogic {
	return &UpdateSeriesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *UpdateSeriesLogic) UpdateSeries(req *types.UpdateSeriesReq) (*types.UpdateSeriesResp, error) {
	sum, err := l.svcCtx.Runner.UpdateSymbol(l.ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	return &types.UpdateSeriesResp{
		Symbol:  sum.Symbol,
		State:   string(sum.State),
		Action:  string(sum.Action),
		Rows1m:  sum.Rows1m,
		Rows30m: sum.Rows30m,
		Note:    sum.Note,
	}, nil
}
