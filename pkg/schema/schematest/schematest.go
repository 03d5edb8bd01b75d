// Package schematest opens throwaway databases for tests.
package schematest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

var seq atomic.Int64

// Open returns a migrated in-memory sqlite database private to t. One
// connection keeps the memory database alive and serializes writers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     dsn,
		LogLevel:     "silent",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := schema.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
