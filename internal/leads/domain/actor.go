package domain

import "github.com/google/uuid"

// Actor is the identity a mutation is performed on behalf of. A nil
// CounselorID means the engine itself.
type Actor struct {
	CounselorID *uuid.UUID
	Name        string
}

// SystemActor is used for scheduled jobs and engine-authored entries.
func SystemActor() Actor {
	return Actor{Name: SystemAuthorName}
}

// CounselorActor builds an Actor for an authenticated counselor.
func CounselorActor(id uuid.UUID, name string) Actor {
	return Actor{CounselorID: &id, Name: name}
}

// DisplayName never returns an empty string.
func (a Actor) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.CounselorID != nil:
		return a.CounselorID.String()
	default:
		return SystemAuthorName
	}
}
