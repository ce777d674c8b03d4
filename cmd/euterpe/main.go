package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/api/route"
	"github.com/museslab/euterpe/bootstrap"
	"github.com/museslab/euterpe/domain"
	"github.com/museslab/euterpe/repository"
)

func main() {
	app := bootstrap.App()
	env := app.Env

	db := app.Mongo.Database(env.DBName)
	defer app.CloseDBConnection()

	indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.EnsureIndexes(indexCtx, db, domain.CollectionAnalysis); err != nil {
		log.Fatal("failed to create indexes: ", err)
	}

	timeout := time.Duration(env.ContextTimeout) * time.Second

	if env.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()

	route.Setup(env, timeout, db, engine)

	if err := engine.Run(env.ServerAddress); err != nil {
		log.Fatal("server stopped: ", err)
	}
}
