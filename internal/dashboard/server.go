// Package dashboard serves the local state observer: a JSON snapshot of
// the console, a server-sent event stream, and action endpoints.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/crosswire/intercom/internal/models"
	"github.com/crosswire/intercom/internal/protocol"
	"github.com/crosswire/intercom/internal/reconcile"
	"github.com/gin-gonic/gin"
)

// Console is the reconciler surface the dashboard exposes.
type Console interface {
	Snapshot() reconcile.Snapshot
	Originate(ctx context.Context, target protocol.CallTarget, priority bool) (protocol.CallID, error)
	Accept(ctx context.Context, callID protocol.CallID) (bool, error)
	End(ctx context.Context) (bool, error)
	Dismiss() bool
	ChoosePosition(pos protocol.PositionID) error
	SetTemporaryStation(id protocol.StationID)
}

// History is the slice of the call history log the dashboard reads.
type History interface {
	Entries() ([]models.CallHistoryEntry, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Console Console
	History History // optional
	Port    int
	Out     io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Console == nil {
		return fmt.Errorf("dashboard: console is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8420
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts.Console, opts.History)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
