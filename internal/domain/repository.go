package domain

import (
	"fmt"
	"strings"
)

// Repository identifies a repository by its owner and name.
type Repository struct {
	Owner string
	Name  string
}

// NewRepository creates a Repository from owner and name components.
func NewRepository(owner, name string) Repository {
	return Repository{Owner: owner, Name: name}
}

// ParseRepository parses an "owner/repo" string into a Repository.
func ParseRepository(fullName string) (Repository, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, fullName)
	}
	return Repository{Owner: parts[0], Name: parts[1]}, nil
}

// FullName returns the repository in "owner/repo" format. This format is
// used by the database and for display.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repository) String() string {
	return r.FullName()
}
