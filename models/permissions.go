package models

const (
	SellerRoleManager        = "manager"
	SellerRoleAccountant     = "accountant"
	SellerRoleInventoryStaff = "inventory_staff"
)

const (
	PermProductWrite    = "product:write"
	PermProductDelete   = "product:delete"
	PermInventoryUpdate = "inventory:update"
	PermOrderRead       = "order:read"
	PermOrderUpdate     = "order:update"
	PermFinanceRead     = "finance:read"
	PermStaffManage     = "staff:manage"
)

var sellerPermissions = map[string][]string{
	SellerRoleManager: {
		PermProductWrite, PermProductDelete, PermInventoryUpdate,
		PermOrderRead, PermOrderUpdate, PermFinanceRead, PermStaffManage,
	},
	SellerRoleInventoryStaff: {
		PermProductWrite, PermInventoryUpdate, PermOrderRead, PermOrderUpdate,
	},
	SellerRoleAccountant: {
		PermOrderRead, PermFinanceRead,
	},
}

func IsSellerRole(subRole string) bool {
	_, ok := sellerPermissions[subRole]
	return ok
}

// HasSellerPermission reports whether the seller sub-role grants perm.
func HasSellerPermission(subRole, perm string) bool {
	for _, p := range sellerPermissions[subRole] {
		if p == perm {
			return true
		}
	}
	return false
}

func SellerPermissions(subRole string) []string {
	perms := sellerPermissions[subRole]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
