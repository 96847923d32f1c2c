// Command jdtctl manages the converter's database from a shell: schema
// migrations, account creation and credit adjustments. It talks to the
// same database as the server and goes through the same ledger, so every
// change it makes shows up in the users' credit history.
package main

import (
	"fmt"
	"os"

	"github.com/jerin288/jdt-tool-web/internal/config"
	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/services/accounts"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	root := newRootCmd(openApp)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// app bundles what the subcommands work with.
type app struct {
	db       *database.DB
	ledger   *ledger.Ledger
	accounts *accounts.Service
	close    func() error
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// openApp connects using the server's configuration. databaseURL, when
// set, overrides DATABASE_URL.
func openApp(databaseURL string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.InitLogger("", 0, 0, 0, false, "warn")

	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}
	db, err := database.New(databaseURL, cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	l := ledger.New(db, ledger.Policy{
		SignupBonus:    cfg.SignupBonusCredits,
		ReferralBonus:  cfg.ReferralBonusCredits,
		DailyAllowance: cfg.DailyFreeCredits,
	})
	return &app{db: db, ledger: l, accounts: accounts.New(db, l), close: db.Close}, nil
}
