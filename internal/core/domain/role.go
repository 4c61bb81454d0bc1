package domain

const RoleAnonymous = "anonymous"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PermAddBook        = "add_book"
	PermUpdateBook     = "update_book"
	PermDeleteBook     = "delete_book"
	PermViewUsers      = "view_users"
	PermAddUser        = "add_user"
	PermDeleteUser     = "delete_user"
	PermChangePassword = "change_password"
	PermManageLoans    = "manage_loans"
)

type Role struct {
	Name        string   `yaml:"name" json:"name"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}
