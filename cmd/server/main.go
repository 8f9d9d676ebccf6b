package main

import (
	"github.com/reporover/backend/internal/server"
	"github.com/reporover/backend/internal/util"
	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
