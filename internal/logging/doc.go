// Package logging provides structured logging utilities for bookingsync.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Handler construction from configuration (text or JSON, level)
//   - PII sanitization (customer email and phone anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calsync.import")
//	logger.Info("import finished",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("booking created",
//	    logging.BookingID(b.ID),
//	    logging.CustomerHash(b.CustomerEmail))
//
// # Security Considerations
//
//   - Customer emails and phone numbers are hashed to prevent PII leakage while allowing correlation
//   - Tokens and private keys are never logged directly
package logging
