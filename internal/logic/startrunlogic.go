package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/batch"
	"candlekeep/internal/svc"
	"candlekeep/internal/types"
)

type StartRunLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStartRunLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StartRunLogic {
	return &StartRunLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// StartRun executes one batch synchronously. A run where every symbol
// failed is still answered with its summary; the failure is in Error.
func (l *StartRunLogic) StartRun(req *types.StartRunReq) (*batch.RunSummary, error) {
	kind, err := batch.ParseKind(req.Kind)
	if err != nil {
		return nil, badRequest(err)
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = l.svcCtx.Config.Symbols()
	}

	summary, err := l.svcCtx.Runner.Run(l.ctx, kind, symbols)
	switch {
	case err == nil, errors.Is(err, batch.ErrNoSuccess):
		return &summary, nil
	case errors.Is(err, batch.ErrNoSymbols), errors.Is(err, batch.ErrUnknownKind):
		return nil, badRequest(err)
	default:
		return nil, err
	}
}
