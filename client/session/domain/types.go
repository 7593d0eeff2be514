package domain

// Status is the session state machine: every session starts in checking and
// settles into authenticated or anonymous.
type Status string

const (
	StatusChecking      Status = "checking"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

const (
	RoleAdmin   = "admin"
	RoleCleaner = "cleaner"
	RoleClient  = "client"
)

// rolePriority resolves which role wins when an account carries several.
// Admin outranks cleaner outranks client.
var rolePriority = []string{RoleAdmin, RoleCleaner, RoleClient}

type Identity struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Location string   `json:"location"`
	Roles    []string `json:"roles"`
	Image    string   `json:"image,omitempty"`
}

// PrimaryRole picks the identity's effective role from the priority table.
// Accounts with only unknown roles fall back to the first one listed.
func (i Identity) PrimaryRole() string {
	for _, candidate := range rolePriority {
		for _, role := range i.Roles {
			if role == candidate {
				return candidate
			}
		}
	}
	if len(i.Roles) > 0 {
		return i.Roles[0]
	}
	return ""
}

// Session is the device-local record of whether and as whom the app is
// logged in. Status is authenticated exactly when Token is non-empty.
type Session struct {
	Token     string
	Profile   *Identity
	Status    Status
	Loading   bool
	LastError string
}
