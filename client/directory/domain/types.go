package domain

// Cleaner is one bookable profile in the directory. The collection is keyed
// by ID and replaced wholesale on every fetch.
type Cleaner struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Location string   `json:"location"`
	Image    string   `json:"image,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// CleanerInput carries the writable fields for create/update. Empty fields
// are omitted from update requests so the server patches only what changed.
type CleanerInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Location string
}

func (in CleanerInput) Fields() map[string]string {
	fields := map[string]string{}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Email != "" {
		fields["email"] = in.Email
	}
	if in.Password != "" {
		fields["password"] = in.Password
	}
	if in.Phone != "" {
		fields["phone"] = in.Phone
	}
	if in.Location != "" {
		fields["location"] = in.Location
	}
	return fields
}
