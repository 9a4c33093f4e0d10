// Package identity resolves credentials to users and issues session tokens.
package identity

import (
	"crypto/subtle"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// Landing views per role.
const (
	ViewIntake    = "intake"
	ViewWorkflow  = "workflow"
	ViewOversight = "oversight"
)

type account struct {
	username string
	password string
	user     model.User
}

// accounts is the fixed role table. Not a credential store.
var accounts = []account{
	{"declarant", "declarant", model.User{ID: "u1", Name: "Personnel Terrain", Role: model.RoleDeclarant}},
	{"Psychologues", "Psychologues", model.User{ID: "u2", Name: "Dr. Karama (Psy)", Role: model.RoleAnalyst}},
	{"Gouvernance", "Gouvernance", model.User{ID: "u3", Name: "Direction SOS", Role: model.RoleGovernance}},
}

// Authenticator checks username/password pairs against the role table.
type Authenticator struct{}

// NewAuthenticator creates an authenticator over the fixed role table.
func NewAuthenticator() *Authenticator {
	return &Authenticator{}
}

// Authenticate returns the user for a matching pair. Any mismatch yields the
// same AUTH_FAILED error so callers cannot tell which field was wrong.
func (a *Authenticator) Authenticate(username, password string) (model.User, error) {
	var (
		found model.User
		ok    int
	)
	for _, acc := range accounts {
		u := subtle.ConstantTimeCompare([]byte(username), []byte(acc.username))
		p := subtle.ConstantTimeCompare([]byte(password), []byte(acc.password))
		if u&p == 1 {
			found = acc.user
			ok = 1
		}
	}
	if ok != 1 {
		return model.User{}, apperrors.AuthFailed()
	}
	return found, nil
}

// LookupUser returns the user with id from the role table.
func LookupUser(id string) (model.User, bool) {
	for _, acc := range accounts {
		if acc.user.ID == id {
			return acc.user, true
		}
	}
	return model.User{}, false
}

// LandingView returns the default dashboard view for role.
func LandingView(role model.Role) string {
	switch role {
	case model.RoleAnalyst:
		return ViewWorkflow
	case model.RoleGovernance:
		return ViewOversight
	default:
		return ViewIntake
	}
}
