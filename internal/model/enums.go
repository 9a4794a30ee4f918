package model

// Role is the participant's role within a session. Admin-gated operations
// check it once at the entry of the operation.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleParticipant
}

// Estimate is a sizing value from the fixed planning-poker deck.
// EstimateUnknown is the "?" card and is excluded from averaging.
type Estimate int

const EstimateUnknown Estimate = 999

// EstimateDomain is the fixed ordered set of castable values.
var EstimateDomain = []Estimate{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, EstimateUnknown}

func (e Estimate) Valid() bool {
	for _, v := range EstimateDomain {
		if e == v {
			return true
		}
	}
	return false
}

func (e Estimate) IsUnknown() bool {
	return e == EstimateUnknown
}
