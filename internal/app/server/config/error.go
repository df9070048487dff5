package config

import "errors"

var (
	errMissingSecret   = errors.New("JWT_SECRET is required in prod")
	errMissingDatabase = errors.New("DATABASE_URI is required")
)
