package sqldb

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"
	DriverSQLite   = "sqlite"
)

// Target is a database/sql driver name plus the DSN that driver expects.
type Target struct {
	Driver string
	DSN    string
}

// ParseURL maps a database URL onto a driver. A "+driver" suffix on the
// scheme (mysql+pymysql://) is accepted and ignored. For file databases
// sqlite:///rel.db is relative and sqlite:////abs.db is absolute.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Target{}, fmt.Errorf("database url %q has no scheme", raw)
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}

	switch strings.ToLower(scheme) {
	case "mysql":
		dsn, err := mysqlDSN(raw)
		if err != nil {
			return Target{}, err
		}
		return Target{Driver: DriverMySQL, DSN: dsn}, nil
	case "postgres", "postgresql":
		return Target{Driver: DriverPostgres, DSN: "postgres://" + rest}, nil
	case "duckdb":
		return Target{Driver: DriverDuckDB, DSN: filePath(rest)}, nil
	case "sqlite", "sqlite3":
		path := filePath(rest)
		if path == "" {
			path = ":memory:"
		}
		return Target{Driver: DriverSQLite, DSN: path}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// URLFromConfig returns cfg.URL, or a MySQL URL assembled from the
// individual connection parts.
func URLFromConfig(cfg config.DatabaseConfig) string {
	if strings.TrimSpace(cfg.URL) != "" {
		return strings.TrimSpace(cfg.URL)
	}
	u := url.URL{
		Scheme: "mysql",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.Charset != "" {
		u.RawQuery = url.Values{"charset": []string{cfg.Charset}}.Encode()
	}
	return u.String()
}

// mysqlDSN rewrites a URL into the driver's DSN syntax. Going through
// ParseDSN keeps driver-level parameters such as charset out of the
// session variables.
func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	var dsn strings.Builder
	if u.User != nil {
		dsn.WriteString(u.User.Username())
		if password, ok := u.User.Password(); ok {
			dsn.WriteString(":" + password)
		}
		dsn.WriteString("@")
	}
	dsn.WriteString("tcp(" + u.Host + ")/" + strings.TrimPrefix(u.Path, "/"))
	if u.RawQuery != "" {
		dsn.WriteString("?" + u.RawQuery)
	}
	mc, err := mysql.ParseDSN(dsn.String())
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	return mc.FormatDSN(), nil
}

func filePath(rest string) string {
	if rest == "" {
		return ""
	}
	if strings.HasPrefix(rest, "/") {
		return rest[1:]
	}
	return rest
}
