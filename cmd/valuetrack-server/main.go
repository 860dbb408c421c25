package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/grand-thief-cash/valuetrack/application"
	bizConfig "github.com/grand-thief-cash/valuetrack/internal/config"

	_ "github.com/grand-thief-cash/valuetrack/internal/api"
	_ "github.com/grand-thief-cash/valuetrack/internal/registry_ext"
)

var (
	Version = "v0.2.0"
)

func main() {
	envFlag := flag.String("env", "", "runtime environment (development/production)")
	cfgPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// .env is optional; deployments usually set variables directly
	_ = godotenv.Load()

	env := *envFlag
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	app := application.NewApp(env, *cfgPath)
	app.SetBizConfig(bizConfig.GetBizConfig())

	log.Printf("valuetrack %s starting (env=%s)", Version, env)
	if err := app.Run(); err != nil {
		log.Fatalf("app exited with error: %v", err)
	}
}
