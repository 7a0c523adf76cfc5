package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/threatgate/threatgate/config"
	"github.com/threatgate/threatgate/internal/database"
	"github.com/threatgate/threatgate/internal/repository"
	"github.com/threatgate/threatgate/server"
)

func main() {
	app := &cli.App{
		Name:  "threatgate",
		Usage: "IP reputation aggregation service",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()
					err := repository.MigrateDB(
						cfg.DatabaseConfig.MaxIdleConn,
						cfg.DatabaseConfig.MaxConn,
						cfg.DatabaseConfig.ConnMaxLifetime,
						db,
					)
					if err != nil {
						log.Fatalf("Database migration failed: %v", err)
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("ThreatGate starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						log.Fatalf("Server setup failed: %v", err)
					}

					if err := srv.Run(); err != nil {
						log.Fatalf("Server startup failed: %v", err)
					}

					log.Println("Shutdown complete")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mustInit() (*config.Config, *gorm.DB) {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}

	db, err := database.InitThreatgateDatabase(cfg.DatabaseConfig.ToConnectionConfig())
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	return cfg, db
}
