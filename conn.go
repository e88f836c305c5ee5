package oraexec

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	goOra "github.com/sijms/go-ora/v2"
)

// OracleDriver is the database/sql name registered by go-ora
const OracleDriver = "oracle"

const defaultOraclePort = 1521

// Credentials supplied by the host for every execution. Pooled selects how the
// connection is acquired: a shared pool per database or a handle opened and
// closed for this execution only.
type Credentials struct {
	User          string
	Password      string
	ConnectString string
	Pooled        bool
}

// ConnectionConfiguration represents the minimum configuration required for the connection pool
type ConnectionConfiguration struct {
	ConfigurationSet      bool          `mapstructure:"configurationSet"`
	MaxOpenConnections    int           `mapstructure:"maxOpenConnections"`
	MaxIdleConnections    int           `mapstructure:"maxIdleConnections"`
	ContextTimeout        int           `mapstructure:"contextTimeout"`
	MaxConnectionLifeTime time.Duration `mapstructure:"maxConnectionLifeTime"`
	MaxIdleConnectionTime time.Duration `mapstructure:"maxIdleConnectionTime"`
}

// Acquirer hands out a dedicated Executor for one execution
type Acquirer interface {
	Acquire(ctx context.Context, creds Credentials) (Executor, error)
}

// DBAcquirer opens connections through database/sql. The go-ora driver gets
// output bind support, any other driver runs Input binds only.
type DBAcquirer struct {
	Driver        string
	Pool          *Pool
	Configuration *ConnectionConfiguration
	log           *zerolog.Logger
}

// NewOracleAcquirer creates an Acquirer for Oracle using go-ora
// Parameters:
// @pool: shared pools used when Credentials.Pooled is set, created if nil
// @configuration: Specifies how connections parameters must be handled in ConnectionConfiguration
// @log: In this version *zerolog.Logger is required, nil disables logging
func NewOracleAcquirer(pool *Pool, configuration *ConnectionConfiguration, log *zerolog.Logger) *DBAcquirer {
	return NewSQLAcquirer(OracleDriver, pool, configuration, log)
}

// NewSQLAcquirer creates an Acquirer for any registered database/sql driver,
// Credentials.ConnectString is used as the data source name
func NewSQLAcquirer(driver string, pool *Pool, configuration *ConnectionConfiguration, log *zerolog.Logger) *DBAcquirer {
	log = loggerOrNop(log)
	if pool == nil {
		pool = NewPool(configuration, log)
	}
	return &DBAcquirer{
		Driver:        driver,
		Pool:          pool,
		Configuration: configuration,
		log:           log,
	}
}

// Acquire returns an Executor bound to its own connection, Close on the
// executor gives the connection back
func (a *DBAcquirer) Acquire(ctx context.Context, creds Credentials) (Executor, error) {
	dsn := creds.ConnectString
	if a.Driver == OracleDriver {
		var err error
		if dsn, err = BuildConnStr(creds); err != nil {
			return nil, err
		}
	}
	if dsn == "" {
		return nil, EmptyConStrErr
	}

	var db *sqlx.DB
	var err error
	owned := !creds.Pooled
	if creds.Pooled {
		db, err = a.Pool.Get(ctx, a.Driver, dsn)
	} else {
		a.log.Debug().Msgf("+++ Dedicated connection for [%v]", creds.User)
		db, err = createConnection(ctx, a.Driver, dsn, a.Configuration, a.log)
	}
	if err != nil {
		return nil, err
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		if owned {
			_ = db.Close()
		}
		return nil, CantCreateConnErr(err.Error())
	}

	s := newSession(db, conn, owned, a.log)
	if a.Driver == OracleDriver {
		return &oracleExecutor{session: s}, nil
	}
	return &sqlExecutor{session: s}, nil
}

// BuildConnStr creates the go-ora url from the credentials. ConnectString can
// be a complete oracle:// url or an easy connect string host[:port]/service
func BuildConnStr(creds Credentials) (string, error) {
	cs := strings.TrimSpace(creds.ConnectString)
	if cs == "" {
		return "", EmptyConStrErr
	}
	if strings.HasPrefix(strings.ToLower(cs), "oracle://") {
		return cs, nil
	}

	cs = strings.TrimPrefix(cs, "//")
	hostPort, service, _ := strings.Cut(cs, "/")
	server, port := hostPort, defaultOraclePort
	if h, p, err := net.SplitHostPort(hostPort); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", CantCreateConnErr(fmt.Sprintf("invalid port [%s]", p))
		}
		server, port = h, n
	}
	if server == "" {
		return "", CantCreateConnErr(fmt.Sprintf("invalid connect string [%s]", creds.ConnectString))
	}

	return goOra.BuildUrl(server, port, service, creds.User, creds.Password, nil), nil
}

// createConnection takes all the parameters a construct a new connection object
// Parameters:
// @driver database/sql driver name
// @constr ConnectionString
// @configuration All The configurations that affect how the pool behaves
// @log Log object provided to write into unified log
func createConnection(ctx context.Context, driver, constr string, configuration *ConnectionConfiguration, log *zerolog.Logger) (*sqlx.DB, error) {
	log = loggerOrNop(log)
	conn, err := sqlx.Open(driver, constr)
	if err != nil {
		return nil, CantCreateConnErr(err.Error())
	}

	// context timeout
	timeout := DefaultPingTimeout

	if configuration != nil && configuration.ConfigurationSet {
		log.Debug().
			Int("maxOpenConnections", configuration.MaxOpenConnections).
			Int("maxIdleConnections", configuration.MaxIdleConnections).
			Dur("maxConnectionLifeTime", configuration.MaxConnectionLifeTime).
			Dur("maxIdleConnectionTime", configuration.MaxIdleConnectionTime).
			Msg("applying connection configuration")

		applyConfiguration(conn, configuration)
		if configuration.ContextTimeout > 0 {
			timeout = time.Duration(configuration.ContextTimeout) * time.Second
		}
	}

	// test connection
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err = conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, CantPingConnection(fmt.Sprintf("PingContext %v", err.Error()))
	}

	return conn, nil
}

// applyConfiguration sets the pool limits given in configuration, zero values
// keep the database/sql defaults
func applyConfiguration(db *sqlx.DB, configuration *ConnectionConfiguration) {
	if configuration.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(configuration.MaxOpenConnections)
	}
	if configuration.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(configuration.MaxIdleConnections)
	}
	if configuration.MaxConnectionLifeTime > 0 {
		db.SetConnMaxLifetime(configuration.MaxConnectionLifeTime)
	}
	if configuration.MaxIdleConnectionTime > 0 {
		db.SetConnMaxIdleTime(configuration.MaxIdleConnectionTime)
	}
}
