//go:build !cgo

package bcf

// If cgo is not enabled, we will use the modernc.org/sqlite non-cgo sqlite
// driver. It is slower than the sqlite3 cgo driver.

import (
	_ "modernc.org/sqlite"
)

const whichSQLiteDriver = "sqlite"

// See https://www.rockyourcode.com/til-sqlite-foreign-key-support-with-go/
// and https://twitter.com/frioux/status/1483235674228596739
const driverPragmas = `
	PRAGMA synchronous = OFF;
	PRAGMA auto_vacuum = NONE;
	`
