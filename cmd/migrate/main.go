package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/db"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/migrate"
)

// command is one migrate subcommand. needsDB commands get a live postgres
// connection; the rest only touch the migrations directory.
type command struct {
	usage   string
	needsDB bool
	run     func(ctx context.Context, env *runEnv, args []string) error
}

type runEnv struct {
	dir string
	db  *db.Client
}

var commands = map[string]command{
	"up":     {usage: "apply all pending migrations", needsDB: true, run: gooseCommand("up")},
	"down":   {usage: "roll back the newest migration", needsDB: true, run: gooseCommand("down")},
	"redo":   {usage: "roll back and reapply the newest migration", needsDB: true, run: gooseCommand("redo")},
	"status": {usage: "print applied and pending migrations", needsDB: true, run: gooseCommand("status")},
	"to": {usage: "migrate up or down to <version>", needsDB: true, run: func(ctx context.Context, env *runEnv, args []string) error {
		if len(args) != 1 {
			return errors.New("usage: migrate to <version>")
		}
		sqlDB, err := env.db.DB().DB()
		if err != nil {
			return err
		}
		return migrate.MigrateToVersion(ctx, sqlDB, env.dir, args[0])
	}},
	"create": {usage: "scaffold <name> as a new sql migration", run: func(_ context.Context, env *runEnv, args []string) error {
		if len(args) != 1 {
			return errors.New("usage: migrate create <name>")
		}
		path, err := migrate.CreateSQLMigration(env.dir, args[0])
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	}},
	"validate": {usage: "lint migration files without touching the database", run: func(_ context.Context, env *runEnv, _ []string) error {
		if err := migrate.ValidateDir(env.dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}},
}

func gooseCommand(name string) func(context.Context, *runEnv, []string) error {
	return func(ctx context.Context, env *runEnv, _ []string) error {
		sqlDB, err := env.db.DB().DB()
		if err != nil {
			return err
		}
		return migrate.Run(ctx, sqlDB, env.dir, name)
	}
}

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory, or \""+migrate.EmbeddedDir+"\" for the compiled-in set")
	flag.Usage = usage
	flag.Parse()

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": name,
		"dir": *dir,
	})

	env := &runEnv{dir: *dir}
	if cmd.needsDB {
		if cfg.FeatureFlags.UseSQLite {
			logg.Error(ctx, "goose migrations target postgres", errors.New("PALLETWINE_USE_SQLITE is set"))
			os.Exit(1)
		}
		env.db, err = db.New(ctx, cfg.DB, false, logg)
		if err != nil {
			logg.Error(ctx, "connect database", err)
			os.Exit(1)
		}
		defer env.db.Close()
	}

	if err := cmd.run(ctx, env, flag.Args()[1:]); err != nil {
		logg.Error(ctx, "migrate "+name+" failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate "+name+" done")
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: migrate [-dir path] <command> [arg]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-9s %s\n", name, commands[name].usage)
	}
	fmt.Fprint(os.Stderr, b.String())
	flag.PrintDefaults()
}
