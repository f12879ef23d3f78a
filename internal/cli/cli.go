// Package cli implements the redisreplica-demo command-line entry point:
// load a config file, start the driver, print a start line and a final
// tally of keys and commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"redisreplica"
	"redisreplica/internal/config"
	"redisreplica/internal/logger"
	"redisreplica/rdb"
)

// Execute dispatches the demo CLI's subcommands and returns a process exit
// code.
func Execute(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}
	switch args[0] {
	case "replicate":
		return runReplicate(args[1:])
	case "version", "--version", "-v":
		fmt.Println("redisreplica-demo 0.1.0-dev")
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`redisreplica-demo — attach to a Redis master and stream its replication log

Usage:
  redisreplica-demo replicate -config <path>
  redisreplica-demo version
  redisreplica-demo help`)
}

func runReplicate(args []string) int {
	fs := flag.NewFlagSet("replicate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logLevel := logger.INFO
	if cfg.Log.Level == "DEBUG" {
		logLevel = logger.DEBUG
	}
	if err := logger.Init(cfg.Log.Dir, logLevel, "redisreplica-demo"); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		return 1
	}
	defer logger.Close()

	running := new(atomic.Bool)
	running.Store(true)

	handler := &progressHandler{}
	traceRate, traceBurst := cfg.TraceLimit()

	driver, err := redisreplica.NewBuilder().
		WithAddr(cfg.Master.Addr).
		WithPassword(cfg.Master.Password).
		WithReadTimeout(cfg.ReadTimeout).
		WithWriteTimeout(cfg.WriteTimeout).
		WithDiscardRDB(cfg.IsDiscardRDB).
		WithAOF(cfg.IsAOF).
		WithReplID(cfg.ReplID).
		WithReplOffset(cfg.ReplOffset).
		WithCaptureRDB(cfg.CaptureRDBPath).
		WithCaptureStream(cfg.CaptureStreamPath).
		WithRDBTrace(traceRate, traceBurst).
		WithRDBHandler(handler).
		WithCommandHandler(handler).
		WithRunning(running).
		Build()
	if err != nil {
		logger.Error("building driver: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		driver.Close()
	}()

	stopReporter := startInfoReporter(cfg)
	defer stopReporter()

	logger.Console("connecting to %s", cfg.Master.Addr)
	if err := driver.Start(); err != nil {
		logger.Error("replication stopped: %v", err)
		return 1
	}
	logger.Console("replication finished, %d keys, %d commands", handler.keys.Load(), handler.commands.Load())
	return 0
}

// progressHandler counts decoded snapshot objects and streamed commands, the
// only "domain logic" this demo needs — real callers supply their own.
type progressHandler struct {
	keys     atomic.Int64
	commands atomic.Int64
}

// HandleRDBEvent implements redisreplica.RDBHandler.
func (h *progressHandler) HandleRDBEvent(ev rdb.Event) error {
	switch ev.(type) {
	case rdb.EOREvent:
		return nil
	default:
		h.keys.Add(1)
		return nil
	}
}

// HandleCommand implements redisreplica.CommandHandler.
func (h *progressHandler) HandleCommand(args [][]byte) error {
	h.commands.Add(1)
	return nil
}

// startInfoReporter opens a secondary go-redis client against the same
// master purely to poll INFO replication for operator-facing context
// (master_repl_offset, connected_slaves) alongside the driver's own offset
// tracking. Its failure is never fatal — it's a convenience, not the
// replication path.
func startInfoReporter(cfg *config.Config) func() {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Master.Addr,
		Password: cfg.Master.Password,
	})
	ticker := time.NewTicker(10 * time.Second)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				info, err := client.Info(ctx, "replication").Result()
				cancel()
				if err != nil {
					logger.Debug("info reporter: %v", err)
					continue
				}
				logger.Debug("master INFO replication:\n%s", info)
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
		client.Close()
	}
}
