package alphavantage

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/pkg/market"
)

func init() {
	market.RegisterProvider(providerName, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []Option{
			WithBaseURL(cfg.BaseURL),
			WithEntitlement(cfg.Entitlement),
			WithExtendedHours(cfg.ExtendedHours),
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithMaxRetries(cfg.MaxRetries))
		}
		if cfg.CallsPerMinute > 0 {
			opts = append(opts, WithCallsPerMinute(cfg.CallsPerMinute))
		}
		client, err := NewClient(cfg.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		if !client.HasCredential() {
			logx.Errorf("%s: provider %s has no api_key; runs will be refused", providerName, name)
		}
		return client, nil
	})
}
