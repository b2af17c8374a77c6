//go:build integration

package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"smartbanker/backend/internal/account/domain"
	"smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/db"
	"smartbanker/backend/internal/db/migrate"
	"smartbanker/backend/internal/persistence"
)

func TestPostgresGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Gateway Integration Suite")
}

var (
	ctx       context.Context
	container testcontainers.Container
	pool      *pgxpool.Pool
)

var _ = BeforeSuite(func() {
	ctx = context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("smartbanker_test"),
		postgres.WithUsername("smartbanker"),
		postgres.WithPassword("smartbanker"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())
	container = pg

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())
	Expect(migrate.Run(dsn, migrate.Up)).To(Succeed())

	version, dirty, err := migrate.Version(dsn)
	Expect(err).NotTo(HaveOccurred())
	Expect(dirty).To(BeFalse())
	Expect(version).To(BeNumerically(">=", 1))

	pool, err = db.Open(ctx, dsn)
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(ctx)
	}
})

func account(username, email string) domain.Account {
	return domain.Account{
		Username:      username,
		Email:         email,
		PasswordHash:  "pw",
		PinHash:       "pin",
		Name:          "Integration",
		Age:           30,
		Bank:          "SmartBank",
		AccountNumber: "1001",
		CreatedAt:     time.Now().UTC(),
	}
}

var _ = Describe("PostgresGateway", func() {
	var gw *persistence.PostgresGateway

	BeforeEach(func() {
		_, err := pool.Exec(ctx, "DELETE FROM accounts")
		Expect(err).NotTo(HaveOccurred())
		gw = persistence.NewPostgresGateway(pool)
	})

	It("loads an empty collection from a fresh table", func() {
		accounts, err := gw.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(BeEmpty())
	})

	It("round-trips accounts in insertion order", func() {
		alice := account("alice", "a@x.com")
		alice.Append(domain.NewTransaction(domain.TransactionDeposit, decimal.RequireFromString("250.50"), time.Now()))
		Expect(gw.SaveAll(ctx, []domain.Account{account("zed", "z@x.com"), alice})).To(Succeed())

		accounts, err := gw.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(HaveLen(2))
		Expect(accounts[0].Username).To(Equal("zed"))
		Expect(accounts[1].Balance.Equal(decimal.RequireFromString("250.50"))).To(BeTrue())
		Expect(accounts[1].Transactions).To(HaveLen(1))
	})

	It("keeps the previous collection when a save violates a constraint", func() {
		Expect(gw.SaveAll(ctx, []domain.Account{account("alice", "a@x.com")})).To(Succeed())

		err := gw.SaveAll(ctx, []domain.Account{account("bob", "same@x.com"), account("carol", "same@x.com")})
		Expect(err).To(MatchError(persistence.ErrStorageFailure))

		accounts, err := gw.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(HaveLen(1))
		Expect(accounts[0].Username).To(Equal("alice"))
	})

	It("backs the account store end to end", func() {
		store := repository.NewStore(persistence.NewCoordinator(gw))
		dave := account("dave", "d@x.com")
		Expect(store.Create(ctx, &dave)).To(Succeed())

		again := account("dave", "other@x.com")
		Expect(store.Create(ctx, &again)).To(MatchError(repository.ErrDuplicateIdentity))

		reloaded, err := repository.NewStore(persistence.NewCoordinator(gw)).GetByUsername(ctx, "dave")
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Email).To(Equal("d@x.com"))
	})
})
