package sqldb

import (
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"viaduct/resource"
)

// Connection is the materialized database resource behind the sql driver.
type Connection struct {
	scope  resource.Scope
	config resource.Config
	*sqlx.DB
}

func (c Connection) Close() error {
	err := c.DB.Close()
	if config, ok := c.config.(SQLiteConfig); ok {
		os.Remove(config.DBName)
	}
	return err
}

func (c Connection) Type() resource.Type {
	return resource.SqlConnection
}

var _ resource.Resource = Connection{}

//=================================
// MySQL config
//=================================

type MySQLConfig struct {
	DBName   string
	Username string
	Password string
	Host     string
}

var _ resource.Config = MySQLConfig{}

func (conf MySQLConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	connectStr := fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?tls=true",
		conf.Username, conf.Password, conf.Host, conf.DBName,
	)
	db, err := sqlx.Open("mysql", connectStr)
	if err != nil {
		return nil, err
	}
	return Connection{scope: scope, config: conf, DB: db}, nil
}

//=================================
// SQLite config, for tests
//=================================

type SQLiteConfig struct {
	DBName string
}

var _ resource.Config = SQLiteConfig{}

func (conf SQLiteConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	dbname := conf.DBName
	os.Remove(dbname)

	file, err := os.Create(dbname)
	if err != nil {
		return nil, err
	}
	file.Close()

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("./%s", dbname))
	if err != nil {
		return nil, err
	}
	return Connection{scope: scope, config: conf, DB: db}, nil
}
