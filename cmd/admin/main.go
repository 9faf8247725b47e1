package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/contactkeeper/internal/admin"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

const usage = `usage:
  admin migrate [-d dsn] [-c config.json]
  admin create-user -u <username> -e <email> [-r admin|manager|agent] [-d dsn] [-c config.json]`

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usage)
	}
	cmd, rest := args[0], args[1:]

	cfg, err := config.LoadConfig(rest)
	if err != nil {
		return err
	}
	logger := logging.NewForEnv(cfg.Env, os.Stderr)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()

	switch cmd {
	case "migrate":
		if err := m.RunMigrations(ctx, db); err != nil {
			return err
		}
		logger.Info(ctx, "migrations applied")
		return nil

	case "create-user":
		opts, err := admin.ParseCreateUser(rest)
		if err != nil {
			return err
		}
		if err := m.RunMigrations(ctx, db); err != nil {
			return err
		}
		return admin.CreateUser(ctx, services.NewUserService(db, m, cfg, logger), opts, os.Stdout)
	}

	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}
