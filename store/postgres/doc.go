// Package postgres persists principals and login attempts in PostgreSQL
// through the pgx stdlib driver.
//
// Missing rows surface as adminauth.ErrPrincipalNotFound; every transport or
// query failure wraps adminauth.ErrStoreUnavailable so the engine can keep
// store outages apart from authentication failures.
package postgres
