package request

import (
	"errors"

	"serviceflow/auth"
)

// ErrForbidden signals the actor's role does not permit the operation.
var ErrForbidden = errors.New("request: operation not permitted for role")

// Operation names each guarded request operation.
type Operation string

const (
	OpCreate Operation = "create_request"
	OpList   Operation = "list_requests"
	OpAssign Operation = "assign_vendors"
	OpReport Operation = "report_status"
	OpCancel Operation = "cancel_request"
	OpDelete Operation = "delete_request"
)

// permissions is the single place role gating lives; handlers and services
// consult it instead of comparing role strings at call sites.
var permissions = map[Operation]map[auth.Role]bool{
	OpCreate: {auth.RoleCustomer: true, auth.RoleStaff: true, auth.RoleAdmin: true},
	OpList:   {auth.RoleCustomer: true, auth.RoleVendor: true, auth.RoleStaff: true, auth.RoleAdmin: true},
	OpAssign: {auth.RoleStaff: true, auth.RoleAdmin: true},
	OpReport: {auth.RoleVendor: true},
	OpCancel: {auth.RoleCustomer: true, auth.RoleStaff: true, auth.RoleAdmin: true},
	OpDelete: {auth.RoleAdmin: true},
}

// Allowed reports whether the role may perform the operation.
func Allowed(op Operation, role auth.Role) bool {
	return permissions[op][role]
}

func requirePermission(op Operation, role auth.Role) error {
	if !Allowed(op, role) {
		return ErrForbidden
	}
	return nil
}
