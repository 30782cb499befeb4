// Package mysql opens a plan store backed by MySQL through
// go-sql-driver/mysql, for deployments that run several quickplan instances
// against one database.
package mysql
