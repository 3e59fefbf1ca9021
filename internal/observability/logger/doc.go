// Package logger provides a singleton zap logger with context-based scoping.
//
// Init once in main, then pull the request-scoped logger wherever a context
// is available:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("invite.redeem"))
//	log.Info("invitation redeemed", logger.AccountID(id))
//
// From falls back to the singleton when no logger was injected, so code
// below the HTTP layer never has to check.
package logger
