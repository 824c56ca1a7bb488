// Package core defines the shared language of the leapkpi system.
//
// This package contains:
//   - Domain entities (Customer, Order, OrderItem, Dataset)
//   - KPI result rows and the generic Table handed to the comparator and exporters
//   - The error taxonomy (SourceUnavailable, SchemaViolation, ...)
//   - Adapter and target configuration types
//
// The Golden Rule: pkg/core imports ONLY stdlib and shopspring/decimal.
// All other packages depend on core, not the reverse.
package core
