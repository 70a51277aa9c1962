package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ridge/alluvium/tcontext"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"go.uber.org/zap"
	"time"
)

const shutdownTimeout = 5 * time.Second

var lc = net.ListenConfig{
	KeepAlive: 3 * time.Minute,
}

// Server is the HTTP server for the health endpoints
type Server struct {
	listener net.Listener
	handler  http.Handler
}

// NewServer creates a Server on the listener
func NewServer(listener net.Listener, reporter Reporter) *Server {
	return &Server{
		listener: listener,
		handler:  wrap(Handler(reporter), requestLog, recoverPanics, cors),
	}
}

// Listen creates a Server on the given TCP port
func Listen(port int, reporter Reporter) (*Server, error) {
	listener, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on health check port %d: %w", port, err)
	}
	return NewServer(listener, reporter), nil
}

// Run serves requests until the context is closed, then performs graceful
// shutdown for up to shutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		panicChan := make(chan error, 1)
		ctx = withPanicChan(ctx, panicChan)
		ctx = tlog.With(ctx, zap.Stringer("healthServer", s.listener.Addr()))
		reqCtx, reqCancel := context.WithCancel(tcontext.Reopen(ctx)) // stays open longer than ctx

		logger := tlog.Get(ctx)

		server := http.Server{
			Handler:     s.handler,
			ErrorLog:    must.OK1(zap.NewStdLogAt(logger, zap.WarnLevel)),
			BaseContext: func(net.Listener) context.Context { return reqCtx },
		}

		spawn("serve", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving health endpoints")
			err := server.Serve(s.listener)
			// http.Server predates contexts, so it reports an external
			// shutdown request as a distinguished error
			if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		})

		spawn("panicHandler", parallel.Fail, func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-panicChan:
				return err
			}
		})

		spawn("shutdownHandler", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down health server")

			shutdownCtx, cancel := context.WithTimeout(reqCtx, shutdownTimeout)
			defer cancel()
			defer reqCancel()
			defer server.Close() // always returns nil because the listener is already closed

			// Shutdown may return http.ErrServerClosed if the server is
			// already down, which is not an error here
			if err := server.Shutdown(shutdownCtx); err != nil && shutdownCtx.Err() != nil {
				logger.Info("Health server shutdown canceled", zap.Error(err))
				return err
			}
			return ctx.Err()
		})

		return nil
	})
}

// ListenAddr returns the local address of the server's listener
func (s *Server) ListenAddr() net.Addr {
	return s.listener.Addr()
}
