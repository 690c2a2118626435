// Command torqrun hosts a single actor behind an HTTP /metrics
// endpoint, the way a real deployment of this runtime would: a
// long-lived process, not a one-shot demo, instrumented with the same
// adapters/prometheus.ActorMetrics the embedding API accepts as an
// actor.Options field.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	torqprom "github.com/torqlang/torqlang/adapters/prometheus"
	"github.com/torqlang/torqlang/core/actor"
	"github.com/torqlang/torqlang/core/klvm"
	"github.com/torqlang/torqlang/core/system"
)

var (
	logLevel      = getEnv("LOG_LEVEL", "info")
	listenAddr    = getEnv("LISTEN_ADDR", ":9095")
	computeBudget = getEnvInt("COMPUTE_BUDGET", 1000)
)

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// greetHandler builds the same greeting handler that core/system's
// tests use, duplicated rather than imported since test helpers are
// not exported.
func greetHandler() *klvm.Closure {
	span := klvm.EmptySpan()
	body := klvm.NewLocalStmt(span,
		klvm.NewSeqStmt(span,
			klvm.NewCreateRecStmt(span,
				klvm.Lit{Value: klvm.Str("greeting")},
				klvm.Ref{Ident: "greeting"},
				klvm.RecField{Feature: klvm.Lit{Value: klvm.Str("name")}, Value: klvm.Ref{Ident: "msg"}},
			),
			klvm.NewApplyStmt(span, klvm.Ref{Ident: klvm.IdentRespond}, klvm.Ref{Ident: "greeting"}),
		),
		"greeting",
	)
	def := &klvm.ProcDef{Params: []klvm.Ident{"msg"}, Body: body, Name: "greet"}
	return &klvm.Closure{Def: def, CapturedEnv: klvm.EmptyEnv}
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(logLevel)}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics := torqprom.NewActorMetrics(reg)

	sys := system.NewActorSystem(system.Config{
		ActorOptions: actor.Options{
			Logger:        log,
			Metrics:       metrics,
			ComputeBudget: computeBudget,
		},
	})
	sys.AddDefaultModules()
	defer sys.Close()

	addr := system.NewActorBuilder(sys).
		WithAddress("greeter").
		WithHandler(greetHandler()).
		Spawn()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/greet", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "World"
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		reply, err := system.NewRequestClient(sys).Ask(ctx, addr, klvm.Str(name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, reply.KernelString())
	})

	log.Info("torqrun listening", slog.String("addr", listenAddr))
	if err := http.ListenAndServe(listenAddr, mux); err != nil {
		log.Error("server exited", slog.Any("err", err))
		os.Exit(1)
	}
}
