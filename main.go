package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cppla/daka/config"
	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/models"
	"github.com/cppla/daka/routes"
	"github.com/cppla/daka/services"
	"github.com/cppla/daka/utils"
)

func main() {
	adminTTL := flag.Duration("admin-token", 0, "print an admin JWT valid for this long and exit")
	flag.Parse()

	cfg := config.Load()

	if *adminTTL > 0 {
		tok, err := utils.GenerateToken(cfg.JWTSecret, "cli", utils.RoleAdmin, *adminTTL)
		if err != nil {
			panic(err)
		}
		fmt.Println(tok)
		return
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.CheckIn{}, &models.WalletStreak{}, &models.PolicyEntry{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := services.NewPolicyStore(db, utils.Logger).Seed(ctx, seedPolicy(cfg)); err != nil {
		utils.Sugar.Fatalf("seed policy_config: %v", err)
	}

	rpcClient, err := ledger.Dial(ctx, cfg.LedgerRPCURL, time.Duration(cfg.LedgerTimeoutSec)*time.Second)
	if err != nil {
		utils.Sugar.Fatalf("ledger client: %v", err)
	}
	defer rpcClient.Close()

	reader := ledger.NewCachedReader(rpcClient, utils.GetRedis(), time.Duration(cfg.LedgerCacheSec)*time.Second, utils.Logger)

	r := routes.SetupRouter(cfg, routes.Deps{DB: db, Ledger: reader})

	utils.Sugar.Infof("Starting daka server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func seedPolicy(cfg config.AppConfig) map[string]string {
	balance, err := decimal.NewFromString(cfg.SeedMinSolBalance)
	if err != nil {
		utils.Sugar.Fatalf("seed_min_sol_balance %q: %v", cfg.SeedMinSolBalance, err)
	}
	return map[string]string{
		models.PolicyMinSolBalance:    balance.String(),
		models.PolicyMinTxCount:       fmt.Sprint(cfg.SeedMinTxCount),
		models.PolicyMinWalletAgeDays: fmt.Sprint(cfg.SeedMinWalletAgeDays),
		models.PolicyTargetCount:      fmt.Sprint(cfg.SeedTargetCount),
		models.PolicyTestingMode:      fmt.Sprint(cfg.SeedTestingMode),
	}
}
