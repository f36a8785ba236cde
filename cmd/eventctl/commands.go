package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/persistence"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/service"
)

const commandTimeout = 30 * time.Second

func newApp() *cli.App {
	return &cli.App{
		Name:  "eventctl",
		Usage: "Administer the event service database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "Postgres connection string",
				EnvVars: []string{"POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			_ = godotenv.Load()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending schema migrations",
				Action: runMigrate,
			},
			{
				Name:  "user",
				Usage: "Manage users",
				Subcommands: []*cli.Command{
					{
						Name:  "promote",
						Usage: "Grant the admin flag to a user",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
							&cli.BoolFlag{Name: "revoke", Usage: "Remove the admin flag instead"},
						},
						Action: userPromote,
					},
				},
			},
			{
				Name:  "event",
				Usage: "Manage events",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create an event",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
							&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
							&cli.TimestampFlag{
								Name:     "at",
								Usage:    "Meeting time, RFC 3339",
								Layout:   time.RFC3339,
								Required: true,
							},
						},
						Action: eventCreate,
					},
					{
						Name:   "delete",
						Usage:  "Delete an event and its memberships",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
						Action: eventDelete,
					},
				},
			},
		},
	}
}

// env holds the connections shared by every command.
type env struct {
	logger *zap.Logger
	pg     *persistence.Postgres
}

func openEnv(c *cli.Context) (*env, error) {
	dsn := c.String("dsn")
	if dsn == "" {
		return nil, errors.New("postgres DSN required (--dsn or POSTGRES_DSN)")
	}
	logger, err := observability.NewLogger(config.LoggerConfig{Level: c.String("log-level")})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 2}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{logger: logger, pg: pg}, nil
}

func (e *env) close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func runMigrate(c *cli.Context) error {
	logger, err := observability.NewLogger(config.LoggerConfig{Level: c.String("log-level")})
	if err != nil {
		return err
	}
	if c.String("dsn") == "" {
		return errors.New("postgres DSN required (--dsn or POSTGRES_DSN)")
	}
	if err := persistence.RunMigrations(c.String("dsn"), logger); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "migrations applied")
	return nil
}

func userPromote(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo: repository.NewUserRepository(e.pg.Pool),
		Logger:   e.logger,
	})
	user, err := authService.SetAdmin(ctx, c.String("username"), !c.Bool("revoke"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s admin=%t\n", user.Username, user.IsAdmin)
	return nil
}

func eventCreate(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	events := service.NewEventService(service.EventDependencies{
		EventRepo: repository.NewEventRepository(e.pg.Pool),
		Logger:    e.logger,
	})
	event, err := events.Create(ctx, service.Operator, service.EventCreateInput{
		Title:       c.String("title"),
		Description: c.String("description"),
		MeetingTime: *c.Timestamp("at"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", event.ID, event.MeetingTime.Format(time.RFC3339), event.Title)
	return nil
}

func eventDelete(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	events := service.NewEventService(service.EventDependencies{
		EventRepo: repository.NewEventRepository(e.pg.Pool),
		Logger:    e.logger,
	})
	if err := events.Delete(ctx, service.Operator, c.String("id")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.String("id"))
	return nil
}
