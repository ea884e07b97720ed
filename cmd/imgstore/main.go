package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/imgstore/internal/database"
	"github.com/mdouchement/imgstore/internal/scheduler"
	"github.com/mdouchement/imgstore/internal/storage"
	"github.com/mdouchement/imgstore/internal/webserver"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dbname = "imgstore.db"

// Chunks must stay below the backing store's per-value comfort zone.
const (
	defaultChunkSize = 50 << 10
	maxChunkSize     = 1 << 20
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
)

func main() {
	c := &cobra.Command{
		Use:     "imgstore",
		Short:   "Content-addressable image hosting server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for imgstore",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "5000", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormInit(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormReIndex(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			ctrl := webserver.Controller{
				Version: c.Parent().Version,
			}

			//

			log := logrus.New()
			log.SetFormatter(&logger.LogrusTextFormatter{
				DisableColors:   false,
				ForceColors:     true,
				ForceFormatting: true,
				PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			ctrl.Logger = logger.WrapLogrus(log)

			//

			chunksize, err := chunkSize()
			if err != nil {
				return err
			}

			db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()
			ctrl.Repository = storage.NewRepository(db, chunksize)

			//

			ttl, err := cacheTTL()
			if err != nil {
				return err
			}
			ctrl.Cache = cache.New(ttl)

			//

			scheduler.Start(scheduler.Controller{
				Logger:        ctrl.Logger,
				Cache:         ctrl.Cache,
				Specification: envORdefault("IMGSTORE_CACHE_SWEEP", "@every 30s"),
			})

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", binding, port)
			log.Printf("Server listening on %s", listen)
			return errors.Wrap(
				engine.Start(listen),
				"could not run server",
			)
		},
	}
)

func chunkSize() (int, error) {
	raw := os.Getenv("IMGSTORE_STORAGE_CHUNK_SIZE")
	if raw == "" {
		return defaultChunkSize, nil
	}

	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(err, "could not parse IMGSTORE_STORAGE_CHUNK_SIZE")
	}
	if size < 1 || size > maxChunkSize {
		return 0, errors.Errorf("IMGSTORE_STORAGE_CHUNK_SIZE must be between 1 and %d bytes", maxChunkSize)
	}
	return size, nil
}

func cacheTTL() (time.Duration, error) {
	raw := os.Getenv("IMGSTORE_CACHE_TTL")
	if raw == "" {
		return cache.DefaultTTL, nil
	}

	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, "could not parse IMGSTORE_CACHE_TTL")
	}
	return ttl, nil
}

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, name)
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}
