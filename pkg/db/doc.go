// Package db connects to PostgreSQL for the kvcron Postgres backend.
//
// [Connect] opens a pgx pool from [Config] with startup retries.
// [WithTxOptions] runs a function inside a transaction with explicit
// isolation; kv commits use it at serializable level. [Migrate] applies
// embedded goose migrations into a dedicated bookkeeping table.
//
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	err = db.WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "UPDATE kvcron_entries SET value = $1 WHERE key = $2", v, k)
//		return err
//	})
package db
