//go:build libsql

package relational

import _ "github.com/tursodatabase/go-libsql"

const libsqlAvailable = true
