// Package password wraps bcrypt hashing for admin secrets: cost-validated
// hashing, constant-time verification, a precomputed dummy hash for uniform
// timing on unknown identifiers, and cost-upgrade detection.
package password
