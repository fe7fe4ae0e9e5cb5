package probe

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/querydesk/querydesk-cli/internal/model"
)

var defaultPorts = map[string]int{
	model.EnginePostgres: 5432,
	model.EngineMySQL:    3306,
	model.EngineMongo:    27017,
}

func portFor(cfg model.DatabaseConfig) int {
	if cfg.Port > 0 {
		return cfg.Port
	}
	return defaultPorts[cfg.Engine()]
}

// PostgresDSN builds a lib/pq URL. Credentials are escaped.
func PostgresDSN(cfg model.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(portFor(cfg))),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// MySQLDSN builds a go-sql-driver DSN.
func MySQLDSN(cfg model.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portFor(cfg)))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// MongoURI builds a mongodb:// URI. A host that is already a mongodb or
// mongodb+srv URI is used as is, with a <password> placeholder filled in.
func MongoURI(cfg model.DatabaseConfig) string {
	if strings.HasPrefix(cfg.Host, "mongodb://") || strings.HasPrefix(cfg.Host, "mongodb+srv://") {
		uri := cfg.Host
		if cfg.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", url.QueryEscape(cfg.Password))
		}
		return uri
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(portFor(cfg))),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

// SQLitePath is the database file; users enter it as the host.
func SQLitePath(cfg model.DatabaseConfig) string {
	if cfg.Database != "" && cfg.Host == "" {
		return cfg.Database
	}
	return cfg.Host
}

func dsnFor(cfg model.DatabaseConfig) (driver string, dsn string, err error) {
	switch cfg.Engine() {
	case model.EnginePostgres:
		return "postgres", PostgresDSN(cfg), nil
	case model.EngineMySQL:
		return "mysql", MySQLDSN(cfg), nil
	case model.EngineSQLite:
		return "sqlite", SQLitePath(cfg), nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupported, cfg.Type)
	}
}
