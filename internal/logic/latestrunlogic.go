package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/batch"
	"candlekeep/internal/svc"
	"candlekeep/internal/types"
)

type LatestRunLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLatestRunLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LatestRunLogic {
	return &LatestRunLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *LatestRunLogic) LatestRun(req *types.LatestRunReq) (*batch.RunSummary, error) {
	if req.Kind != "" {
		if _, err := batch.ParseKind(req.Kind); err != nil {
			return nil, badRequest(err)
		}
	}
	return l.svcCtx.Runs.Latest(l.ctx, req.Kind)
}
