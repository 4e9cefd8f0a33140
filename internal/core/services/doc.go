// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion extracts, summarises and indexes documents; querying routes a
// question to the direct or decomposed strategy, collects evidence and
// synthesises an answer.
package services
