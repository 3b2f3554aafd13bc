package app

import (
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
)

// The ops endpoint serves probes and metrics only; chat traffic arrives
// through the shard runtime, not HTTP.

func (a *App) healthz(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString(`{"status":"ok"}`)
}

func (a *App) readyz(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	if !a.store.Ready() {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_, _ = ctx.WriteString(`{"status":"store not ready"}`)
		return
	}
	if a.hw != nil && a.hw.DiskAlerted() {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_, _ = ctx.WriteString(`{"status":"disk pressure"}`)
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString(`{"status":"ok","version":"` + ver + `"}`)
}

// startHTTP binds the ops listener before returning, so a bind failure
// surfaces at startup rather than on the error channel. The channel
// receives the serve loop's exit, nil after a clean Shutdown.
func (a *App) startHTTP() (<-chan error, error) {
	metrics := fasthttpadaptor.NewFastHTTPHandler(telemetry.Handler())
	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			a.healthz(ctx)
		case "/readyz":
			a.readyz(ctx)
		case "/metrics":
			metrics(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetContentType("application/json")
			_, _ = ctx.WriteString(`{"error":"not found"}`)
		}
	}

	a.srv = &fasthttp.Server{
		Handler:      handler,
		Name:         "chatshard",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	ln, err := net.Listen("tcp", a.eff.Addr)
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops_http_listening", "addr", ln.Addr().String())
		errCh <- a.srv.Serve(ln)
	}()
	return errCh, nil
}
