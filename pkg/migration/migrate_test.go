package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用順序と冪等性を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":      {Data: []byte(`CREATE INDEX idx_items_name ON items(name);`)},
		"migrations/000001_create_items.up.sql":   {Data: []byte(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);`)},
		"migrations/000001_create_items.down.sql": {Data: []byte(`DROP TABLE items;`)},
		"migrations/README.md":                    {Data: []byte(`ignored`)},
		"migrations/noversion.up.sql":             {Data: []byte(`ignored`)},
	}

	t.Run("バージョン順に適用され2回目は何も適用されないこと", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)

		n, err := Run(t.Context(), db, fsys, "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}

		if _, err := db.Exec(`INSERT INTO items (name) VALUES ('a')`); err != nil {
			t.Fatalf("テーブルが作成されていない: %v", err)
		}

		n, err = Run(t.Context(), db, fsys, "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("2回目の適用件数 = %d, want 0", n)
		}
	})

	t.Run("不正なSQLの場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte(`CREATE TABLE (`)},
		}

		if _, err := Run(t.Context(), db, broken, "m", zap.NewNop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("ディレクトリが存在しない場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := Run(t.Context(), db, fsys, "missing", zap.NewNop()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}
