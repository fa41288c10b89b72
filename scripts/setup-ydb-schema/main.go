// Command setup-ydb-schema creates the summary history table in YDB.
// Usage: go run ./scripts/setup-ydb-schema grpc://localhost:2136/local
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ydb-platform/ydb-go-sdk/v3"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
)

const schema = `
CREATE TABLE IF NOT EXISTS summary_history (
	object Utf8,
	key Utf8,
	recorded_at Timestamp,
	payload Json,
	PRIMARY KEY (object, key, recorded_at)
)`

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: setup-ydb-schema <connection_string>")
	}

	ctx := context.Background()
	driver, err := ydb.Open(ctx, os.Args[1])
	if err != nil {
		log.Fatalf("failed to connect to YDB: %v", err)
	}
	defer driver.Close(ctx)

	err = driver.Table().Do(ctx, func(ctx context.Context, s table.Session) error {
		return s.ExecuteSchemeQuery(ctx, schema)
	})
	if err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	fmt.Println("summary history schema ready")
}
