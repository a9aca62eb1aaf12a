// Package database manages the SQLite connection for HOTAS Relay Core.
//
// It wraps database/sql with connection configuration (WAL mode, busy
// timeout, single-writer pool) and an embedded-migration runner. Migration
// files are compiled into the binary via the migrations package.
package database
