package session

// Allergy severities accepted by the service.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// ValidSeverity reports whether s is a severity the service accepts.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// Allergy is one entry of the user's allergy profile. Name is stored
// trimmed and case-folded; no two allergies in a profile share a name.
type Allergy struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Notes    string `json:"notes"`
}

// Identity holds who the user is.
type Identity struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserProfile is the profile of the authenticated user. It is owned by the
// session manager; other components mutate it only through manager
// operations.
type UserProfile struct {
	Identity   Identity
	Allergies  []Allergy
	TotalScans int
}

// clone returns a deep copy so callers cannot mutate manager-owned state.
func (p *UserProfile) clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Allergies = append([]Allergy(nil), p.Allergies...)
	return &cp
}

// Registration holds the fields required to create an account. Field
// validation (non-empty names, password length) is the caller's concern.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
}

type profileResponse struct {
	User       Identity  `json:"user"`
	Allergies  []Allergy `json:"allergies"`
	TotalScans int       `json:"total_scans"`
}
