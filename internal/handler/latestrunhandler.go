package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"candlekeep/internal/logic"
	"candlekeep/internal/svc"
	"candlekeep/internal/types"
)

func LatestRunHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LatestRunReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, parseError(err))
			return
		}

		l := logic.NewLatestRunLogic(r.Context(), svcCtx)
		resp, err := l.LatestRun(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
