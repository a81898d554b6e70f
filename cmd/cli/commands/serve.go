package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jakechorley/autoroster/pkg/httpapi"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the priority and roster HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Cfg.HTTP.Addr
			}

			// Requests are logged through zap by the router
			gin.SetMode(gin.ReleaseMode)
			router := httpapi.NewRouter(httpapi.Deps{
				Ledger:  app.Ledger,
				Trips:   app,
				Metrics: app.Metrics,
			}, app.Logger)

			return httpapi.Serve(app.Ctx, addr, router, app.Logger)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to config)")

	return cmd
}
