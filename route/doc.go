// Package route defines route descriptors, their typed access requirements, and
// the immutable route table a navigation guard consults.
//
// # Requirements
//
// A route carries a [Requirements] bit set instead of free-form metadata. The
// set is iterated in a fixed order ([Order]): auth, admin, team leader. Guards
// rely on that order to decide which unmet requirement wins.
//
// # What this package must NOT do
//
//   - Read session state or make allow/redirect decisions.
//   - Mutate a [Table] after [NewTable] returns.
package route
