// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/pdiddy/dbnascent/internal/secrets"
	"github.com/pdiddy/dbnascent/pkg/types"
)

// DSN builds the driver connection string for files. For mysql, Database
// is host:port/dbname and the user and password come from the credentials
// file when one is configured, otherwise from the db-user and db-password
// secrets.
func DSN(files types.FileLocations, keys map[string]string) (string, error) {
	switch files.Driver {
	case types.DriverSQLite, "":
		if files.Database == "" {
			return "", fmt.Errorf("sqlite3: database path is empty")
		}
		if strings.Contains(files.Database, "?") {
			return files.Database, nil
		}
		return files.Database + "?_journal_mode=WAL&_foreign_keys=on", nil

	case types.DriverMySQL:
		return mysqlDSN(files, keys)

	case types.DriverPostgres, "postgres":
		if files.Database == "" {
			return keys["db-dsn"], nil
		}
		return files.Database, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", files.Driver)
}

func mysqlDSN(files types.FileLocations, keys map[string]string) (string, error) {
	target := files.Database
	if target == "" {
		target = keys["db-dsn"]
	}
	if strings.Contains(target, "@") {
		cfg, err := mysql.ParseDSN(target)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}

	addr, dbName, ok := strings.Cut(target, "/")
	if !ok || addr == "" || dbName == "" {
		return "", fmt.Errorf("mysql database %q: expected host:port/dbname", target)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = dbName
	cfg.ParseTime = true

	if files.Credentials != "" {
		cred, err := secrets.ReadCredentials(files.Credentials)
		if err != nil {
			return "", err
		}
		cfg.User, cfg.Passwd = cred.User, cred.Password
	} else {
		cfg.User, cfg.Passwd = keys["db-user"], keys["db-password"]
	}
	return cfg.FormatDSN(), nil
}

// OpenConfig connects to the database described by files.
func OpenConfig(files types.FileLocations, keys map[string]string) (*Store, error) {
	dsn, err := DSN(files, keys)
	if err != nil {
		return nil, err
	}
	driver := files.Driver
	if driver == "" {
		driver = types.DriverSQLite
	}
	return Open(driver, dsn)
}
