package types

// IdentityRequest is the enrollment payload for create, update and roster
// import. IdentityID is ignored on update.
type IdentityRequest struct {
	IdentityID  string `json:"identity_id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	Department  string `json:"department,omitempty" yaml:"department"`
	Year        string `json:"year,omitempty" yaml:"year"`
	Phone       string `json:"phone,omitempty" yaml:"phone"`
	Email       string `json:"email,omitempty" yaml:"email"`
	Status      string `json:"status,omitempty" yaml:"status"`
}

type DescriptorRequest struct {
	Descriptor []float32 `json:"descriptor"`
}

type IdentityView struct {
	IdentityID    string `json:"identity_id"`
	DisplayName   string `json:"name"`
	Department    string `json:"department,omitempty"`
	Year          string `json:"year,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        string `json:"status"`
	HasDescriptor bool   `json:"has_descriptor"`
	RegisteredAt  string `json:"registered_at"`
	UpdatedAt     string `json:"updated_at"`
}
