package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"bulwark/internal/audit"
	kafkasink "bulwark/internal/audit/sink/kafka"
	memorysink "bulwark/internal/audit/sink/memory"
	postgressink "bulwark/internal/audit/sink/postgres"
	"bulwark/internal/guard/credit"
	creditmemory "bulwark/internal/guard/credit/store/memory"
	creditpostgres "bulwark/internal/guard/credit/store/postgres"
	"bulwark/internal/guard/injection"
	"bulwark/internal/guard/inputcheck"
	"bulwark/internal/guard/purchase"
	"bulwark/internal/guard/ratelimit"
	ratememory "bulwark/internal/guard/ratelimit/store/memory"
	rateredis "bulwark/internal/guard/ratelimit/store/redis"
	"bulwark/internal/guard/session"
	"bulwark/internal/identity"
	"bulwark/internal/integrity"
	"bulwark/internal/metrics"
	"bulwark/internal/platform/config"
	"bulwark/internal/platform/httpserver"
	"bulwark/internal/platform/logger"
	"bulwark/internal/sweep"
	httptransport "bulwark/internal/transport/http"
)

// main wires the guard engine into its reference HTTP surface. Business
// logic lives in the internal guard packages; this file only selects
// backends from configuration and manages process lifecycle.
func main() {
	log := logger.New()
	cfg := config.FromEnv(log)
	m := metrics.New()

	// Audit sink: kafka, then postgres, then in-memory.
	var sink audit.Sink = memorysink.New()
	if cfg.KafkaBrokers != "" {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(strings.Split(cfg.KafkaBrokers, ",")...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			log.Error("kafka client init failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		sink = kafkasink.New(client)
	} else if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("audit database open failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		sink = postgressink.New(db)
	}

	recorder := audit.NewRecorder(sink,
		audit.WithLogger(log),
		audit.WithMetrics(m),
	)

	// Ledger: postgres when configured, otherwise an empty in-memory ledger
	// (audits then trivially reconcile, which is the right behavior for a
	// development process with no billing backend).
	var ledger credit.Ledger = creditmemory.New()
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Error("ledger pool init failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		ledger = creditpostgres.New(pool)
	}

	// Rate-limit windows: shared redis store when configured.
	var windows ratelimit.WindowStore = ratememory.New()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		windows = rateredis.New(client)
	}

	policies := ratelimit.DefaultTable()
	if cfg.RatePolicyFile != "" {
		loaded, err := ratelimit.LoadTable(cfg.RatePolicyFile)
		if err != nil {
			log.Error("rate policy file rejected", "path", cfg.RatePolicyFile, "error", err)
			os.Exit(1)
		}
		policies = loaded
	}

	scanner := injection.NewScanner(recorder, injection.WithLogger(log), injection.WithMetrics(m))
	limiter := ratelimit.NewLimiter(windows,
		ratelimit.WithPolicies(policies),
		ratelimit.WithEvents(recorder),
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)
	credits := credit.NewGuard(ledger,
		credit.WithEvents(recorder),
		credit.WithLogger(log),
		credit.WithMetrics(m),
	)
	purchases := purchase.NewTracker(purchase.WithEvents(recorder), purchase.WithMetrics(m))
	sessions := session.NewValidator(session.WithEvents(recorder))
	checker := inputcheck.NewChecker(inputcheck.WithEvents(recorder))
	signer := integrity.NewSigner(cfg.SigningSecret)
	tokens := identity.NewTokenService(cfg.SigningSecret, "bulwark")

	sweeper := sweep.New(recorder, windows, sessions, purchases,
		sweep.WithAuditor(credits),
		sweep.WithStartDelay(cfg.SweepStartDelay),
		sweep.WithInterval(cfg.SweepInterval),
		sweep.WithLogger(log),
		sweep.WithMetrics(m),
	)

	handler := httptransport.NewHandler(scanner, limiter, credits, purchases, sessions, checker, signer, sweeper, recorder, log)
	router := httptransport.NewRouter(handler, tokens, cfg.AdminServiceKey, log)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting bulwark", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := sweeper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Final flush so buffered events survive a clean shutdown.
		recorder.Flush(shutdownCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("bulwark exited with error", "error", err)
		os.Exit(1)
	}
}
