// Package sqlstore implements plan.Store on top of database/sql. Dialect
// specifics (driver errors, migration files) are supplied by the sqlite and
// mysql packages.
package sqlstore
