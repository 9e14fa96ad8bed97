package sources

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Driver Postgres
)

const defaultQueryTimeout = 5 * time.Second

// querySQL executa a query e devolve uma lista de mapas coluna -> valor.
func querySQL(ctx context.Context, db *sql.DB, query string, args []interface{}) ([]map[string]interface{}, error) {
	ctxDb, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctxDb, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro na query SQL: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))

	finalResult := []map[string]interface{}{}
	for rows.Next() {
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		entry := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				entry[col] = string(b)
			} else {
				entry[col] = values[i]
			}
		}
		finalResult = append(finalResult, entry)
	}

	return finalResult, rows.Err()
}
