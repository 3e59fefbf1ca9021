package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/app"
	"github.com/dropDatabas3/gatehouse/internal/config"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/store/pg"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(cfg func() *config.Config) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			ctx := cmd.Context()
			log := logger.From(ctx).With(logger.Layer("cmd"), logger.Op("serve"))

			a, err := app.Build(ctx, c, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if ps, ok := a.Store.(*pg.Store); ok {
					if err := ps.Migrate(ctx); err != nil {
						return err
					}
				}
			}

			srv := &http.Server{
				Addr:         c.Server.Addr,
				Handler:      a.Handler,
				ReadTimeout:  c.Server.ReadTimeout,
				WriteTimeout: c.Server.WriteTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening",
					logger.String("addr", c.Server.Addr),
					logger.String("storage", c.Storage.Driver),
					logger.String("cache", c.Cache.Driver),
					logger.Bool("private_beta", c.Registration.PrivateBeta),
					logger.Bool("directory_login", c.DirectoryEnabled()),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), c.Server.ShutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func migrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if c.Storage.Driver != "postgres" && c.Storage.Driver != "pg" {
				return errors.New("migrate needs storage.driver postgres")
			}
			st, err := pg.New(cmd.Context(), c.Storage.DSN, c.Storage.MaxConns)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.From(cmd.Context()).Info("migrations applied")
			return nil
		},
	}
}
