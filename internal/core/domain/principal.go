package domain

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID        int64
	Name      string
	Username  string
	Email     string
	Roles     []string
	Demo      bool
	Federated bool
}

// NewPrincipal builds a Principal from a loaded identity.
func NewPrincipal(i *Identity) *Principal {
	roles := make([]string, len(i.Roles))
	copy(roles, i.Roles)
	return &Principal{
		ID:        i.ID,
		Name:      i.Name,
		Username:  i.Username,
		Email:     i.Email,
		Roles:     roles,
		Demo:      i.Demo,
		Federated: i.IsFederated(),
	}
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
