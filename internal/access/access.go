package access

type Permission string

const (
	ManagePlaylists Permission = "manage:playlists"
)

type Checker interface {
	Can(Permission) bool
}

// Set is a static permission set, e.g. decoded from a session token.
type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}

	return s
}

func (s Set) Can(p Permission) bool {
	_, ok := s[p]
	return ok
}
