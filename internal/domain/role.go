package domain

import "strings"

// Role enumerates canonical caller roles.
type Role string

const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleAdmin           Role = "ADMIN"
	RoleFMManager       Role = "FM_MANAGER"
	RolePropertyManager Role = "PROPERTY_MANAGER"
	RoleTechnician      Role = "TECHNICIAN"
	RoleFinance         Role = "FINANCE"
	RoleHR              Role = "HR"
	RoleTenant          Role = "TENANT"
	RoleVendor          Role = "VENDOR"
	RoleViewer          Role = "VIEWER"
)

var canonicalRoles = map[Role]struct{}{
	RoleSuperAdmin:      {},
	RoleAdmin:           {},
	RoleFMManager:       {},
	RolePropertyManager: {},
	RoleTechnician:      {},
	RoleFinance:         {},
	RoleHR:              {},
	RoleTenant:          {},
	RoleVendor:          {},
	RoleViewer:          {},
}

// roleAliases maps legacy and external role names onto canonical roles.
var roleAliases = map[string]Role{
	"CORPORATE_ADMIN":  RoleAdmin,
	"ORG_ADMIN":        RoleAdmin,
	"OWNER":            RoleAdmin,
	"MANAGER":          RoleFMManager,
	"FACILITY_MANAGER": RoleFMManager,
	"PM":               RolePropertyManager,
	"TECH":             RoleTechnician,
	"FIELD_ENGINEER":   RoleTechnician,
	"FINANCE_OFFICER":  RoleFinance,
	"ACCOUNTANT":       RoleFinance,
	"HR_MANAGER":       RoleHR,
	"HR_OFFICER":       RoleHR,
	"CUSTOMER":         RoleTenant,
	"RESIDENT":         RoleTenant,
	"SUPPLIER":         RoleVendor,
	"GUEST":            RoleViewer,
	"READ_ONLY":        RoleViewer,
}

// NormalizeRole resolves raw to a canonical role. Matching ignores case and
// treats dashes and spaces as underscores.
func NormalizeRole(raw string) (Role, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if _, ok := canonicalRoles[Role(key)]; ok {
		return Role(key), true
	}
	role, ok := roleAliases[key]
	return role, ok
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}
