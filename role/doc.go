// Package role defines the ordered admin privilege tiers (editor, admin,
// super_admin) and the single rank comparison used for route-level
// authorization. There are no per-resource permissions: authorization in
// this system is coarse-grained and role-only.
package role
