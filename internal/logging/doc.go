// Package logging provides per-module structured loggers built on log/slog.
//
// Records go to stdout (text or JSON), to the systemd journal when journald
// is reachable, and to an in-memory ring buffer that backs the admin log
// endpoint and the log event stream.
//
// Call Initialize once at startup, then obtain loggers by module name:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"server": "debug"},
//	})
//	logger := logging.GetLogger("server")
//	logger.Info("Listening", "addr", ":80")
//
// Levels are held in a *slog.LevelVar per module, so Reconfigure can change
// them while loggers handed out earlier stay valid. This is what the config
// file watcher uses for hot reload.
package logging
