package models

import "time"

type Person struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Task struct {
	ID            string
	Title         string
	Description   string
	OwnerID       string
	ParentID      string
	DependencyIDs []string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Answer is one respondent's current perception of one (entity, attribute)
// pair. A respondent holds at most one current answer per pair; a new
// submission supersedes the old one, and the old row moves to the audit
// table. Refused carries "asked and declined": no value, and the tuple is
// excluded from future obligations until explicitly reset.
type Answer struct {
	ID           string
	RespondentID string
	EntityID     string
	Attribute    string
	Value        string
	Refused      bool
	SubmittedAt  time.Time
}

// AlignmentEdge is directed: the source wants to compare their perception
// against the target's self-answers. It does not imply the reverse edge.
type AlignmentEdge struct {
	SourceID  string
	TargetID  string
	CreatedAt time.Time
}
