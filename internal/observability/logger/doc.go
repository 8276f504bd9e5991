// Package logger provides a singleton Zap logger with context-based scoping.
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{Env: "dev", Level: "debug"})
//	defer logger.Sync()
//
// En controllers/services (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("connect.token"))
//	log.Info("token issued", logger.ClientID(clientID))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("server started")
package logger
