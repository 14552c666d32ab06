package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"DistReduce/internal/comm"
	"DistReduce/internal/config"
	"DistReduce/internal/coordinator"
	"DistReduce/internal/discovery"
	"DistReduce/internal/logger"
	"DistReduce/internal/types"
)

func main() {
	defaults := config.Default()
	cfg := defaults

	mode := flag.String("mode", "local", "Mode: 'local' runs every rank in this process, 'rank' runs one rank, 'clean' sweeps aborted jobs")
	flag.StringVar(&cfg.Input, "input", "", "Source file to process")
	flag.StringVar(&cfg.Output, "output", defaults.Output, "Shared output file")
	flag.StringVar(&cfg.ScratchDir, "scratch", defaults.ScratchDir, "Root directory for job scratch files")
	flag.IntVar(&cfg.Reducers, "reducers", defaults.Reducers, "Number of reduce partitions")
	flag.Int64Var(&cfg.BlockSize, "block", defaults.BlockSize, "Target bytes per work unit")
	flag.StringVar(&cfg.LogLevel, "log", defaults.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR")
	flag.StringVar(&cfg.App, "app", defaults.App, "Application: 'wordcount' or 'grep'")
	flag.StringVar(&cfg.Pattern, "pattern", "", "Regular expression for the grep app")

	workers := flag.Int("workers", 4, "local: number of ranks including the coordinator")

	rank := flag.Int("rank", 0, "rank: this process's rank, 0 is the coordinator")
	world := flag.Int("world", 0, "rank: number of ranks in the job")
	bind := flag.String("bind", "127.0.0.1:0", "rank: mailbox RPC listen address")
	gossipAddr := flag.String("gossip-addr", "127.0.0.1", "rank: gossip bind address")
	gossipPort := flag.Int("gossip", 7946, "rank: gossip bind port")
	join := flag.String("join", "", "rank: comma-separated gossip addresses of running ranks")

	minAge := flag.Duration("min-age", time.Hour, "clean: leave jobs written to more recently than this")
	flag.Parse()

	lg := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "local":
		err = coordinator.RunLocal(ctx, cfg, *workers, lg)
	case "rank":
		err = runRank(ctx, cfg, rankOpts{
			rank:       *rank,
			world:      *world,
			bind:       *bind,
			gossipAddr: *gossipAddr,
			gossipPort: *gossipPort,
			join:       splitList(*join),
		}, lg)
	case "clean":
		var report coordinator.SweepReport
		report, err = coordinator.Sweep(cfg.ScratchDir, *minAge, lg)
		if err == nil {
			lg.Info("Sweep finished: jobs=%d files=%d skipped=%d", report.Jobs, report.Files, report.Skipped)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", *mode)
		os.Exit(2)
	}

	if err != nil {
		lg.Error("Exiting: mode=%s err=%v", *mode, err)
		os.Exit(1)
	}
}

type rankOpts struct {
	rank       int
	world      int
	bind       string
	gossipAddr string
	gossipPort int
	join       []string
}

// runRank runs one rank of a job whose ranks are separate processes. Ranks
// find each other by gossip and exchange messages over net/rpc.
func runRank(ctx context.Context, cfg config.Config, opts rankOpts, lg *logger.Logger) error {
	if err := config.ValidateWorld(opts.rank, opts.world); err != nil {
		return err
	}
	if err := cfg.ValidateFor(types.RoleOf(opts.rank)); err != nil {
		return err
	}
	app, err := coordinator.NewApp(cfg)
	if err != nil {
		return err
	}

	transport, err := comm.Listen(opts.rank, opts.world, opts.bind, lg)
	if err != nil {
		return err
	}
	defer transport.Close()

	disc, err := discovery.NewNodeDiscovery(discovery.Config{
		Rank:      opts.rank,
		WorldSize: opts.world,
		RPCAddr:   transport.Addr(),
		BindAddr:  opts.gossipAddr,
		BindPort:  opts.gossipPort,
		JoinAddrs: opts.join,
	}, lg)
	if err != nil {
		return err
	}
	defer disc.Shutdown()

	lg.Info("Waiting for ranks: rank=%d world=%d gossip=%s", opts.rank, opts.world, disc.GossipAddr())
	if err := disc.WaitForWorld(ctx); err != nil {
		return fmt.Errorf("failed to discover all ranks: %w", err)
	}
	transport.UseResolver(disc)

	if err := coordinator.NewJob(cfg, transport, app.Mapper, app.Reducer, lg).Execute(ctx); err != nil {
		return err
	}

	if err := disc.Leave(5 * time.Second); err != nil {
		lg.Warn("Failed to leave gossip cluster: %v", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
