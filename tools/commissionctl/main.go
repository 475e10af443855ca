package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"fuel-commission/internal/auth"
	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
	"fuel-commission/internal/config"
	"fuel-commission/internal/logging"
	"fuel-commission/internal/wiring"
)

var operator = auth.Actor{Subject: "system:commissionctl", Role: auth.RoleAdmin}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "commissionctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "commissionctl",
		Usage:  "Operate the commission engine from the command line",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "calculate",
				Usage: "Calculate commissions for a period",
				Flags: []cli.Flag{
					periodFlag(),
					stationsFlag(),
					&cli.BoolFlag{Name: "correction", Usage: "Supersede paid records with correction records"},
					&cli.StringFlag{Name: "notes", Usage: "Notes stored on each record"},
				},
				Action: func(c *cli.Context) error {
					period, err := commission.ParsePeriod(c.String("period"))
					if err != nil {
						return err
					}
					return withEngine(c, func(app *wiring.Commission) (any, error) {
						return app.Lifecycle.Calculate(c.Context, operator, application.CalculateRequest{
							Period:     period,
							StationIDs: c.StringSlice("station"),
							Correction: c.Bool("correction"),
							Notes:      c.String("notes"),
						})
					})
				},
			},
			{
				Name:  "open-period",
				Usage: "Create pending records for a period",
				Flags: []cli.Flag{periodFlag(), stationsFlag()},
				Action: func(c *cli.Context) error {
					period, err := commission.ParsePeriod(c.String("period"))
					if err != nil {
						return err
					}
					return withEngine(c, func(app *wiring.Commission) (any, error) {
						return app.Lifecycle.OpenPeriod(c.Context, operator, period, c.StringSlice("station"))
					})
				},
			},
			{
				Name:  "token",
				Usage: "Issue a bearer token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Usage: "HMAC secret", EnvVars: []string{"AUTH_JWT_SECRET"}, Required: true},
					&cli.StringFlag{Name: "subject", Value: "local-user"},
					&cli.StringFlag{Name: "role", Value: string(auth.RoleAdmin)},
					&cli.StringFlag{Name: "omc"},
					&cli.StringFlag{Name: "dealer"},
					&cli.StringFlag{Name: "station"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: func(c *cli.Context) error {
					role, ok := auth.NormalizeRole(c.String("role"))
					if !ok {
						return fmt.Errorf("unknown role %q", c.String("role"))
					}
					actor := auth.Actor{
						Subject:   c.String("subject"),
						Role:      role,
						OMCID:     c.String("omc"),
						DealerID:  c.String("dealer"),
						StationID: c.String("station"),
					}
					if err := actor.Validate(); err != nil {
						return err
					}
					token, err := auth.IssueJWT(actor, []byte(c.String("secret")), c.Duration("ttl"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, token)
					return err
				},
			},
		},
	}
}

func periodFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "period", Usage: "Period as YYYY-MM", Required: true}
}

func stationsFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{Name: "station", Usage: "Station id (repeatable); defaults to every station"}
}

// withEngine loads config, opens the database and prints the JSON result.
func withEngine(c *cli.Context, run func(app *wiring.Commission) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL or PG_DSN is required")
	}
	logger := logging.New(cfg.LogLevel, "console", os.Stderr)
	cfg.Scheduler.Enabled = false

	db, err := wiring.OpenDB(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func(db *sqlx.DB) { _ = db.Close() }(db)

	app, err := wiring.Build(db, cfg, logger.Level(zerolog.WarnLevel))
	if err != nil {
		return err
	}
	result, err := run(app)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
