// Package scopes is the scope authority: exact-membership checks over opaque
// permission strings and the subset rule that stops a requester from
// granting a scope it does not hold.
package scopes

import "slices"

const (
	Default = "users.default"
	Create  = "users.create"
	Delete  = "users.delete"
	Edit    = "users.edit"
	EditAll = "users.edit.all"
	List    = "users.list"
)

var universe = []string{Default, Create, Delete, Edit, EditAll, List}

// All returns every recognised scope. The slice is fresh on each call.
func All() []string {
	return slices.Clone(universe)
}

func IsKnown(scope string) bool {
	return slices.Contains(universe, scope)
}

// Has reports whether scope is literally present in held. There is no
// hierarchy: users.edit.all does not imply users.edit.
func Has(held []string, scope string) bool {
	return slices.Contains(held, scope)
}

// CanGrant reports whether every requested scope is held by the requester.
// An empty request is always grantable.
func CanGrant(held, requested []string) bool {
	for _, s := range requested {
		if !Has(held, s) {
			return false
		}
	}
	return true
}
