package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"candlekeep/internal/cli"
	"candlekeep/internal/config"
	"candlekeep/internal/handler"
	"candlekeep/internal/svc"
)

var configFile = flag.String("f", "etc/candlekeep.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	cli.LogConfigSummary(cfg)

	ctx := svc.NewServiceContext(*cfg)
	defer ctx.Close()
	handler.RegisterHandlers(server, ctx)
	httpx.SetErrorHandlerCtx(handler.ErrorHandler)

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
