// Server runs the SmartBanker HTTP JSON API and, when GRPC_HEALTH_ADDR is set, the gRPC health service.
package main

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/audit"
	authhandler "smartbanker/backend/internal/auth/handler"
	authservice "smartbanker/backend/internal/auth/service"
	"smartbanker/backend/internal/config"
	"smartbanker/backend/internal/db"
	"smartbanker/backend/internal/devotp"
	devotphandler "smartbanker/backend/internal/devotp/handler"
	"smartbanker/backend/internal/health"
	ledgerhandler "smartbanker/backend/internal/ledger/handler"
	ledgerservice "smartbanker/backend/internal/ledger/service"
	"smartbanker/backend/internal/logging"
	"smartbanker/backend/internal/mfa"
	"smartbanker/backend/internal/mfa/email"
	mfarepo "smartbanker/backend/internal/mfa/repository"
	"smartbanker/backend/internal/persistence"
	"smartbanker/backend/internal/policy/engine"
	"smartbanker/backend/internal/security"
	"smartbanker/backend/internal/server"
	"smartbanker/backend/internal/statement"
	"smartbanker/backend/internal/telemetry"
	telemetryotel "smartbanker/backend/internal/telemetry/otel"
	"smartbanker/backend/internal/telemetry/producer"
)

const serviceName = "smartbanker"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.SetDefault(serviceName, version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, version, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.KafkaTopic); kp != nil {
		defer func() { _ = kp.Close() }()
		emitters = append(emitters, kp)
		slog.Info("bank events produced to kafka", "topic", cfg.KafkaTopic)
	}
	events := telemetry.Multi(emitters...)

	gateway, pool, err := openGateway(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	accounts := accountrepo.NewStore(persistence.NewCoordinator(gateway))

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		return err
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	issuer := mfa.NewIssuer(mfarepo.NewMemoryRepository(), newSender(cfg), cfg.OTPTTL())
	var devHandler *devotphandler.Handler
	if cfg.OTPReturnToClient && !cfg.IsProduction() {
		store := devotp.NewMemoryStore()
		issuer.WithDevStore(store)
		devHandler = devotphandler.NewHandler(store)
		slog.Warn("dev OTP mode enabled: codes are readable at /dev/otp/{username}")
	}

	policy, err := newPolicy(ctx, cfg)
	if err != nil {
		return err
	}

	machine := authservice.NewMachine(accounts, issuer, hasher, tokens, audit.NewLogger(events, "auth", nil))
	ledger := ledgerservice.NewLedger(accounts, hasher, policy, audit.NewLogger(events, "ledger", nil)).
		WithMaxAmount(cfg.LedgerMaxAmount())

	routes := []server.Routes{
		authhandler.NewHandler(machine, ledger),
		ledgerhandler.NewHandler(ledger, statement.NewTextRenderer(time.Local)),
	}
	if devHandler != nil {
		routes = append(routes, devHandler)
	}

	var pinger health.Pinger
	if pool != nil {
		pinger = pool
	}
	checker := health.NewChecker(pinger, policy)

	srv := server.New(cfg.HTTPAddr, server.NewRouter(server.Deps{Routes: routes, Health: checker}),
		cfg.GRPCHealthAddr, server.NewGRPCServer(checker))
	runErr := srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetry.Drain(drainCtx); err != nil {
		slog.Warn("bank events still in flight at shutdown", "error", err)
	}
	return runErr
}

func openGateway(ctx context.Context, cfg *config.Config) (persistence.Gateway, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.StoreDriverPostgres {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using postgres account store")
		return persistence.NewPostgresGateway(pool), pool, nil
	}
	slog.Info("using file account store", "path", cfg.DataFile)
	return persistence.NewFileGateway(cfg.DataFile), nil, nil
}

func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	var (
		priv crypto.Signer
		pub  crypto.PublicKey
		err  error
	)
	if cfg.JWTPrivateKey == "" {
		priv, pub, err = security.GenerateEphemeralKey()
		if err != nil {
			return nil, fmt.Errorf("flow token key: %w", err)
		}
		slog.Warn("JWT keys not configured; using an ephemeral signing key")
	} else {
		if priv, err = security.ParsePrivateKey(cfg.JWTPrivateKey); err != nil {
			return nil, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
		}
		if pub, err = security.ParsePublicKey(cfg.JWTPublicKey); err != nil {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.FlowTTL())
}

func newSender(cfg *config.Config) mfa.Sender {
	if cfg.EmailJSEnabled() {
		return email.NewEmailJSClient(cfg.EmailJSServiceID, cfg.EmailJSTemplateID, cfg.EmailJSPublicKey,
			cfg.EmailJSPrivateKey, cfg.EmailJSBaseURL)
	}
	slog.Warn("EmailJS not configured; codes are not emailed")
	return email.LogSender{}
}

func newPolicy(ctx context.Context, cfg *config.Config) (*engine.OPAEvaluator, error) {
	var modules []string
	if cfg.LedgerPolicyFile != "" {
		src, err := engine.LoadPolicyFile(cfg.LedgerPolicyFile)
		if err != nil {
			return nil, fmt.Errorf("ledger policy: %w", err)
		}
		modules = append(modules, src)
	}
	policy, err := engine.NewOPAEvaluator(ctx, modules...)
	if err != nil {
		return nil, fmt.Errorf("ledger policy: %w", err)
	}
	return policy, nil
}
