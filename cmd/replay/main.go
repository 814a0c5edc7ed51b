package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pairspread/internal/services/spread"
	"pairspread/internal/usecase"
	"pairspread/pkg/config"
	applogger "pairspread/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file; its estimator section is used")
	input := flag.String("input", "-", "CSV of timestamp,priceA,priceB; - reads stdin")
	pair := flag.String("pair", "A/B", "pair name written on each decision")
	lookback := flag.Int("lookback", 0, "override estimator lookback")
	thetaMin := flag.Float64("theta-min", 0, "override minimum entry threshold")
	thetaMax := flag.Float64("theta-max", 0, "override maximum entry threshold")
	exitZ := flag.Float64("exit-z", -1, "override exit z band")
	flag.Parse()

	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	cfg := spread.DefaultConfig()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = c.Estimator
	}
	if *lookback > 0 {
		cfg.Lookback = *lookback
	}
	if *thetaMin > 0 {
		cfg.ThetaMin = *thetaMin
	}
	if *thetaMax > 0 {
		cfg.ThetaMax = *thetaMax
	}
	if *exitZ >= 0 {
		cfg.ExitZ = *exitZ
	}

	var in io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	r, err := usecase.NewReplayer(cfg, *pair, l)
	if err != nil {
		log.Fatalf("estimator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	sum, runErr := r.Run(ctx, in, out)
	if err := out.Flush(); err != nil && runErr == nil {
		runErr = err
	}

	l.Info("replay finished",
		applogger.Int("rows", sum.Rows),
		applogger.Int("skipped", sum.Skipped),
		applogger.Int64("ticks", sum.Ticks),
		applogger.Int("entries", sum.Entries),
		applogger.Int("exits", sum.Exits),
		applogger.Any("degeneracies", sum.Degeneracies),
		applogger.String("position", sum.Final.Position.String()),
	)
	if runErr != nil {
		l.Error("replay failed", applogger.Error(runErr))
		os.Exit(1)
	}
}
