package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/batch"
	"candlekeep/internal/fullfetch"
	"candlekeep/internal/logic"
	"candlekeep/internal/persistence/runs"
	"candlekeep/internal/types"
	"candlekeep/pkg/market"
	"candlekeep/pkg/store"
)

func parseError(err error) error {
	return fmt.Errorf("%w: %w", logic.ErrBadRequest, err)
}

// ErrorHandler maps engine errors to HTTP statuses. Install it with
// httpx.SetErrorHandlerCtx.
func ErrorHandler(ctx context.Context, err error) (int, any) {
	code := StatusOf(err)
	if code >= http.StatusInternalServerError {
		logx.WithContext(ctx).Errorf("api: %v", err)
	}
	return code, &types.ErrorResp{Code: code, Message: err.Error()}
}

// StatusOf classifies err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, logic.ErrBadRequest),
		errors.Is(err, batch.ErrNoSymbols),
		errors.Is(err, batch.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, runs.ErrNoRuns),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, market.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, batch.ErrMissingCredential),
		errors.Is(err, market.ErrMissingCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, fullfetch.ErrNoRows),
		errors.Is(err, market.ErrEmptyPayload):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
