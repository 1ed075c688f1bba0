package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemActorName = "system"

// Actor identifies who performed a mutating action: the system itself or a
// named reviewer. The zero value is the system actor.
type Actor struct {
	reviewerID string
}

// SystemActor is the actor for engine-driven changes.
func SystemActor() Actor {
	return Actor{}
}

// Reviewer returns the actor for the reviewer with the given id.
func Reviewer(id string) (Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Actor{}, &ValidationError{Field: "actor", Message: "reviewer id is required"}
	}
	if strings.EqualFold(id, systemActorName) {
		return Actor{}, &ValidationError{Field: "actor", Message: fmt.Sprintf("%q is reserved", systemActorName)}
	}
	return Actor{reviewerID: id}, nil
}

// IsSystem reports whether a is the system actor.
func (a Actor) IsSystem() bool {
	return a.reviewerID == ""
}

// ReviewerID returns the reviewer id and true, or "" and false for the system.
func (a Actor) ReviewerID() (string, bool) {
	return a.reviewerID, a.reviewerID != ""
}

// Equal reports whether a and b are the same actor.
func (a Actor) Equal(b Actor) bool {
	return a.reviewerID == b.reviewerID
}

func (a Actor) String() string {
	if a.IsSystem() {
		return systemActorName
	}
	return a.reviewerID
}

func (a Actor) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Actor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	if s == "" || s == systemActorName {
		*a = SystemActor()
		return nil
	}
	*a = Actor{reviewerID: s}
	return nil
}
