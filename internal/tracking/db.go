package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib" // Postgres driver for database/sql.
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/apartresearch/reward-analyzer/pkg/check"
)

const (
	maxOpenConns   = 16
	connectRetries = 15
	connectWait    = 4 * time.Second

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ErrDuplicate is returned when a write would violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// DBConfig hosts configuration fields of the tracking database.
type DBConfig struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
	// Debug logs every query.
	Debug bool `json:"debug"`
}

// DefaultDBConfig returns the default configuration of the database.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Host:    "localhost",
		Port:    "5432",
		Name:    "reward_analyzer",
		SSLMode: "disable",
	}
}

// Validate implements the check.Validatable interface.
func (c DBConfig) Validate() []error {
	return []error{
		check.NotEmpty(c.Host, "db host must be set"),
		check.NotEmpty(c.Port, "db port must be set"),
		check.NotEmpty(c.Name, "db name must be set"),
		check.Contains(c.SSLMode,
			[]string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"},
			"invalid ssl_mode"),
	}
}

// Printable returns a copy safe to log.
func (c DBConfig) Printable() DBConfig {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// URL is the connection string of the database.
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Name,
	}
	q := u.Query()
	q.Set("application_name", "reward-analyzer")
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect opens the database, retrying while it comes up.
func Connect(ctx context.Context, c DBConfig) (*bun.DB, error) {
	log.Infof("connecting to database %s:%s", c.Host, c.Port)
	db, err := ConnectURL(ctx, c.URL())
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to database: %s:%s", c.Host, c.Port)
	}
	if c.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// ConnectURL opens the database at a postgres:// URL.
func ConnectURL(ctx context.Context, dbURL string) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(connectWait), connectRetries-1), ctx)
	numTries := 0
	err = backoff.RetryNotify(func() error {
		numTries++
		return sqlDB.PingContext(ctx)
	}, policy, func(err error, wait time.Duration) {
		log.WithError(err).Warnf("failed to connect to postgres, trying again in %s", wait)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "could not connect to database after %v tries", numTries)
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// matchSentinelError maps driver errors onto the package's sentinel errors.
func matchSentinelError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return ErrNotFound
		case codeUniqueViolation:
			return ErrDuplicate
		}
	}
	return err
}
