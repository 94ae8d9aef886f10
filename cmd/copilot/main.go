package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/persistence/chromem"
	"github.com/flarexio/copilot/persistence/sqlite"
	"github.com/flarexio/copilot/vector"

	mcpE "github.com/flarexio/copilot/mcp"
	httpT "github.com/flarexio/copilot/transport/http"
	natsT "github.com/flarexio/copilot/transport/nats"
)

// loadEnv must run before the command parses its flags, which read their
// env sources once.
func loadEnv(filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %s", err.Error())
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "copilot",
		Usage: "Knowledge Copilot service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Path to the Copilot service home",
				Sources: cli.EnvVars("COPILOT_PATH"),
			},
			&cli.BoolFlag{
				Name:  "http",
				Usage: "Enable HTTP transport",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "HTTP server address",
				Value:   ":8000",
				Sources: cli.EnvVars("COPILOT_HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL, the NATS transport is disabled when empty",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.BoolFlag{
				Name:  "log-production",
				Usage: "Use the production logger",
			},
		},
		Action: run,
	}
}

func main() {
	loadEnv()

	cmd := newCommand()

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func loadConfig(path string) (copilot.Config, error) {
	var cfg copilot.Config

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".flarex", "copilot")
	}

	var (
		log *zap.Logger
		err error
	)

	if cmd.Bool("log-production") {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}

	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	loadAPIKeys(&cfg)
	cfg.SetDefaults(path)

	embedder, generator, providers, err := buildModels(ctx, cfg, log)
	defer providers.Close()
	if err != nil {
		return err
	}

	var db vector.VectorDB
	if cfg.Vector.Enabled {
		db, err = chromem.NewChromemVectorDB(cfg.Vector)
		if err != nil {
			return err
		}
	}

	store, err := sqlite.NewStore(cfg.Storage.Path)
	if err != nil {
		return err
	}

	log.Info("storage ready", zap.String("path", store.Path()))

	svc := copilot.NewService(cfg, store, embedder, generator, db)
	defer svc.Close()

	svc = copilot.LoggingMiddleware(log)(svc)

	endpoints := copilot.NewEndpointSet(svc)

	// Add NATS Transport
	if natsURL := cmd.String("nats"); natsURL != "" {
		topic := "copilot"

		idBytes, err := os.ReadFile(filepath.Join(path, "id"))
		switch {
		case err == nil:
			topic = "edges." + strings.TrimSpace(string(idBytes)) + ".copilot"
		case !errors.Is(err, os.ErrNotExist):
			return err
		}

		opts := []nats.Option{
			nats.Name("Copilot Server - " + topic),
		}

		if creds := cmd.String("nats-creds"); creds != "" {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "copilot",
			Version: httpT.Version,
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup(topic)
		if err := natsT.AddEndpoints(root, endpoints); err != nil {
			return err
		}

		log.Info("nats transport enabled", zap.String("topic", topic))
	}

	var server *http.Server
	if cmd.Bool("http") {
		r := gin.Default()
		r.Use(httpT.CORS(cfg.HTTP.CORSOrigins))

		httpT.AddRouters(r, endpoints)
		httpT.AddStreamableRouters(r, mcpE.NewEndpoints(svc))

		server = &http.Server{
			Addr:    cmd.String("http-addr"),
			Handler: r,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err.Error())
			}
		}()

		log.Info("http transport enabled", zap.String("addr", server.Addr))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error(err.Error())
		}
	}

	return nil
}
