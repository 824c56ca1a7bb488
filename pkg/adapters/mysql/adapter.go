// Package mysql provides a MySQL store adapter.
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapkpi/pkg/adapter"
	mysqlDialect "github.com/leapstack-labs/leapkpi/pkg/adapters/mysql/dialect"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for MySQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: mysqlDialect.MySQL},
	}
}

// Dialect returns the MySQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return mysqlDialect.MySQL
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsnCfg, err := buildConfig(cfg)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to mysql", slog.String("addr", dsnCfg.Addr), slog.String("database", dsnCfg.DBName))

	db, err := adapter.Open(ctx, "mysql", dsnCfg.FormatDSN())
	if err != nil {
		return err
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildConfig maps adapter settings onto a driver config.
//
// DATETIME values are wall clocks of the business zone; the session is
// pinned to UTC so the driver neither shifts them on write nor on read.
// ClientFoundRows makes UPDATE report matched rows, which the store's merge
// relies on to detect existing keys.
func buildConfig(cfg adapter.Config) (*mysql.Config, error) {
	c := mysql.NewConfig()

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	c.Net = "tcp"
	c.Addr = host + ":" + strconv.Itoa(port)
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true

	for k, v := range cfg.Options {
		switch k {
		case "timeout":
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid mysql timeout %q: %w", v, err)
			}
			c.Timeout = d
		case "tls":
			c.TLSConfig = v
		default:
			if c.Params == nil {
				c.Params = make(map[string]string)
			}
			c.Params[k] = v
		}
	}
	return c, nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
