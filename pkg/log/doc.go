/*
Package log wraps zerolog for the scheduling engine's CLI and ambient
packages: JSON or console output, level filtering, and component-scoped
child loggers (WithComponent, WithEntity, WithGroup).

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	engineLog := log.WithComponent("engine")
	engineLog.Warn().Str("entity", id).Msg("weight out of bounds, clamped")
*/
package log
