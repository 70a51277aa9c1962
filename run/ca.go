package run

import (
	//
	// This package bundles CA certificates for use in TLS connections
	// (Kafka, PostgreSQL) from containers without a system certificate
	// store.
	//
	_ "golang.org/x/crypto/x509roots/fallback"
)
