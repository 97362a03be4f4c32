// Command hedge runs the hub-and-spoke consensus engine against one of the
// built-in stochastic models and prints the terminal report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/decisionfoundry/hedge-engine/clock"
	"github.com/decisionfoundry/hedge-engine/core"
	"github.com/decisionfoundry/hedge-engine/internal/cylinders/hub"
	"github.com/decisionfoundry/hedge-engine/internal/logging"
	"github.com/decisionfoundry/hedge-engine/internal/observability"
	"github.com/decisionfoundry/hedge-engine/internal/wheel"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/provider"
	"github.com/decisionfoundry/hedge-engine/provider/farmer"
	"github.com/decisionfoundry/hedge-engine/provider/twoscen"
	"github.com/decisionfoundry/hedge-engine/snapshot"
)

func main() {
	modelName := flag.String("model", "farmer", "stochastic model to solve: farmer or twoscen")
	numScens := flag.Int("num-scens", 3, "number of scenarios (farmer only)")
	spokes := flag.String("spokes", "lagrangian,xhatlooper", "comma-separated spoke kinds: lagrangian, xhatlooper, slammax, slammin")
	strategy := flag.String("strategy", "ph", "consensus strategy: ph or subgradient")
	hubWorkers := flag.Int("hub-workers", 1, "hub group size; scenarios are partitioned across these workers")
	bundleSize := flag.Int("bundle-size", 0, "scenarios per combined subproblem; 0 disables bundling")
	surrogate := flag.Bool("surrogate-bundles", false, "keep duals at bundle granularity instead of per scenario")
	defaultRho := flag.Float64("default-rho", 1.0, "default proximal penalty coefficient")
	rhoPolicy := flag.String("rho-policy", "fixed", "rho policy: fixed or norm")
	maxIter := flag.Int("max-iterations", 100, "iteration cap; 0 means unlimited")
	timeLimit := flag.Duration("time-limit", 0, "wall-clock limit for the run; 0 means unlimited")
	relGap := flag.Float64("rel-gap", 0.01, "relative bound-gap convergence threshold")
	absGap := flag.Float64("abs-gap", 0, "absolute bound-gap convergence threshold")
	stallIter := flag.Int("stall-iterations", 0, "stop after this many consecutive low-residual iterations; 0 disables")
	stallEps := flag.Float64("stall-epsilon", 0, "residual threshold for stall detection")
	seed := flag.Int64("seed", 42, "seed for scenario sampling")
	solutionOut := flag.String("solution-out", "", "path to write the final first-stage snapshot")
	warmStart := flag.String("warmstart", "", "path to a snapshot to seed xbar from")
	metricsAddr := flag.String("metrics-addr", "", "listen address for /metrics; empty disables the endpoint")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := core.Config{
		DefaultRho:        *defaultRho,
		Strategy:          *strategy,
		MaxIterations:     *maxIter,
		TimeLimit:         *timeLimit,
		RelGap:            *relGap,
		AbsGap:            *absGap,
		StallIterations:   *stallIter,
		StallEpsilon:      *stallEps,
		HubWorkers:        *hubWorkers,
		BundleSize:        *bundleSize,
		SurrogateBundles:  *surrogate,
		NormRhoUpdates:    *rhoPolicy == "norm",
		Seed:              *seed,
		SolutionPath:      *solutionOut,
		WarmStartPath:     *warmStart,
		SpokePollInterval: time.Millisecond,
	}
	if *rhoPolicy != "fixed" && *rhoPolicy != "norm" {
		fatalf(log, "unknown rho policy %q", *rhoPolicy)
	}
	if err := cfg.Validate(); err != nil {
		fatalf(log, "invalid configuration: %v", err)
	}

	prov, err := buildProvider(*modelName, *numScens, *seed)
	if err != nil {
		fatalf(log, "%v", err)
	}

	var warm []float64
	if cfg.WarmStartPath != "" {
		warm, err = snapshot.Read(cfg.WarmStartPath)
		if err != nil {
			fatalf(log, "%v", err)
		}
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatalf(log, "tracing setup: %v", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	metrics, err := observability.NewRunCollector(nil)
	if err != nil {
		fatalf(log, "metrics setup: %v", err)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server", logging.String("error", err.Error()))
			}
		}()
		defer srv.Close()
	}

	res, err := wheel.Spin(ctx, wheel.Spec{
		Cfg:        cfg,
		Provider:   prov,
		SpokeKinds: splitSpokes(*spokes),
		WarmStart:  warm,
		Log:        log,
		Metrics:    metrics,
		Clock:      clock.Wall{},
	})
	if err != nil {
		log.Error(ctx, "run aborted", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SolutionPath != "" {
		if err := snapshot.Write(cfg.SolutionPath, res.Status, res.Xbar); err != nil {
			log.Error(ctx, "writing solution", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	report, err := renderReport(res)
	if err != nil {
		fatalf(log, "rendering report: %v", err)
	}
	fmt.Println(string(report))

	if res.Status == model.StatusFailed {
		os.Exit(1)
	}
}

// renderReport marshals the terminal report. A run without a spoke on one
// side leaves that bound open at +/-Inf, which JSON cannot encode; open
// bounds and gaps render as null instead.
func renderReport(res hub.Result) ([]byte, error) {
	return json.MarshalIndent(struct {
		Status     string    `json:"status"`
		Iterations int       `json:"iterations"`
		BestInner  *float64  `json:"best_inner"`
		BestOuter  *float64  `json:"best_outer"`
		RelGap     *float64  `json:"rel_gap"`
		Xbar       []float64 `json:"xbar"`
	}{
		Status:     res.Status.String(),
		Iterations: res.Iterations,
		BestInner:  finiteOrNil(res.BestInner),
		BestOuter:  finiteOrNil(res.BestOuter),
		RelGap:     finiteOrNil(res.RelGap),
		Xbar:       res.Xbar,
	}, "", "  ")
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func buildProvider(name string, numScens int, seed int64) (provider.ModelProvider, error) {
	switch name {
	case "farmer":
		return farmer.New(farmer.Config{NumScens: numScens, Seed: seed})
	case "twoscen":
		return twoscen.New(1, -1.5), nil
	default:
		return nil, fmt.Errorf("unknown model %q (want farmer or twoscen)", name)
	}
}

func splitSpokes(s string) []string {
	var kinds []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func fatalf(log logging.Logger, format string, args ...any) {
	log.Error(context.Background(), fmt.Sprintf(format, args...))
	os.Exit(1)
}
