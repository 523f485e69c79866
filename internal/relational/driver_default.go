//go:build !libsql

package relational

const libsqlAvailable = false
