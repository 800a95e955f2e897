// Package seed provides idempotent, manifest-driven local data seeding.
//
// The runner applies one YAML manifest of workflow templates, award types,
// and demo wallet grants through the review application layer, so seeded
// data passes the same definition-time validation the API enforces. A
// state file records what was applied; re-running a manifest never grants
// twice.
package seed
