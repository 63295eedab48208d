package test

import (
	"viaduct/engine/sqldb"
	"viaduct/resource"
)

func defaultDB(scope resource.WorkerScope) (sqldb.Connection, error) {
	config := sqldb.SQLiteConfig{DBName: scope.PrefixedName("viaduct_test.db")}
	res, err := config.Materialize(scope)
	if err != nil {
		return sqldb.Connection{}, err
	}
	return res.(sqldb.Connection), nil
}
