package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// NewWaitPostgresCommand blocks until the database answers a ping or the
// timeout passes. CI runs it before the Postgres integration tests.
func NewWaitPostgresCommand() *cobra.Command {
	var (
		dsn      string
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait-postgres",
		Short: "Wait until Postgres accepts connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = os.Getenv("TEST_POSTGRES_DSN")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or TEST_POSTGRES_DSN is required")
			}
			if timeout <= 0 {
				return fmt.Errorf("invalid timeout: %s", timeout)
			}
			return waitForPostgres(cmd.Context(), cmd, dsn, timeout, interval)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string (defaults to TEST_POSTGRES_DSN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "how long to wait")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "delay between attempts")
	return cmd
}

func waitForPostgres(ctx context.Context, cmd *cobra.Command, dsn string, timeout, interval time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			cmd.Println("postgres ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
