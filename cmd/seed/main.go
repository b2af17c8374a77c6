// seed creates a demo account in the configured store. It hashes the secrets the way the browser
// client does before sending them, so the demo account can log in through the normal API.
// Idempotent: an existing username or email is reported and left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	accountdomain "smartbanker/backend/internal/account/domain"
	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/audit"
	"smartbanker/backend/internal/config"
	"smartbanker/backend/internal/db"
	ledgerservice "smartbanker/backend/internal/ledger/service"
	"smartbanker/backend/internal/persistence"
	"smartbanker/backend/internal/policy/engine"
	"smartbanker/backend/internal/security"
)

type seedOptions struct {
	Username      string
	Password      string
	Pin           string
	Email         string
	Name          string
	Age           int
	Bank          string
	AccountNumber string
	Deposit       string
}

func main() {
	if err := newSeedCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Create a demo SmartBanker account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			gw, closeFn, err := openGateway(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			store := accountrepo.NewStore(persistence.NewCoordinator(gw))
			created, err := seed(cmd.Context(), store, security.NewHasher(cfg.BcryptCost), opts)
			if err != nil {
				return err
			}
			if !created {
				cmd.Printf("account %q already exists; nothing to do\n", opts.Username)
				return nil
			}
			cmd.Printf("created %q (password %q, PIN %q, balance %s)\n", opts.Username, opts.Password, opts.Pin, opts.Deposit)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Username, "username", "demo", "username")
	f.StringVar(&opts.Password, "password", "password123", "plaintext password (hashed client-style before storing)")
	f.StringVar(&opts.Pin, "pin", "1234", "4-digit PIN")
	f.StringVar(&opts.Email, "email", "demo@smartbanker.local", "email that receives one-time codes")
	f.StringVar(&opts.Name, "name", "Demo User", "account holder name")
	f.IntVar(&opts.Age, "age", 30, "account holder age")
	f.StringVar(&opts.Bank, "bank", "SmartBank", "bank name")
	f.StringVar(&opts.AccountNumber, "account", "100200300", "account number")
	f.StringVar(&opts.Deposit, "deposit", "1000", "opening deposit; 0 for none")
	return cmd
}

// seed creates the account and applies the opening deposit. It reports false when the username
// or email is already registered.
func seed(ctx context.Context, store *accountrepo.Store, hasher *security.Hasher, opts seedOptions) (bool, error) {
	if len(opts.Pin) != 4 {
		return false, oops.Code("INVALID_INPUT").Errorf("PIN must be 4 digits")
	}
	opening, err := decimal.NewFromString(opts.Deposit)
	if err != nil || opening.IsNegative() {
		return false, oops.Code("INVALID_INPUT").Errorf("invalid opening deposit %q", opts.Deposit)
	}
	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return false, err
	}
	ledger := ledgerservice.NewLedger(store, hasher, policy, audit.NewLogger(nil, "seed", nil))
	if opening.IsPositive() {
		if err := ledger.ValidateAmount(opening); err != nil {
			return false, oops.Code("INVALID_INPUT").Wrapf(err, "opening deposit %q", opts.Deposit)
		}
	}

	passwordHash, err := hasher.Hash(security.DigestHex(opts.Password))
	if err != nil {
		return false, err
	}
	pinHash, err := hasher.Hash(security.DigestHex(opts.Pin))
	if err != nil {
		return false, err
	}
	a := &accountdomain.Account{
		Username:      opts.Username,
		Email:         opts.Email,
		PasswordHash:  passwordHash,
		PinHash:       pinHash,
		Name:          opts.Name,
		Age:           opts.Age,
		Bank:          opts.Bank,
		AccountNumber: opts.AccountNumber,
		Transactions:  []accountdomain.Transaction{},
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return false, oops.Code("INVALID_INPUT").Wrap(err)
	}
	if err := store.Create(ctx, a); err != nil {
		if errors.Is(err, accountrepo.ErrDuplicateIdentity) {
			return false, nil
		}
		return false, err
	}

	if opening.IsPositive() {
		if _, err := ledger.Deposit(ctx, opts.Username, opening); err != nil {
			return false, oops.Code("SEED_DEPOSIT").Wrap(err)
		}
	}
	return true, nil
}

func openGateway(ctx context.Context, cfg *config.Config) (persistence.Gateway, func(), error) {
	if cfg.StoreDriver == config.StoreDriverPostgres {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		return persistence.NewPostgresGateway(pool), pool.Close, nil
	}
	return persistence.NewFileGateway(cfg.DataFile), func() {}, nil
}
