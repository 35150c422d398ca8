package domain

import "strings"

// Qualification is a user's membership level in the organization.
// Levels are totally ordered: pending < associate < regular < active.
type Qualification string

const (
	QualificationPending   Qualification = "pending"
	QualificationAssociate Qualification = "associate"
	QualificationRegular   Qualification = "regular"
	QualificationActive    Qualification = "active"
)

var qualificationRank = map[Qualification]int{
	QualificationPending:   0,
	QualificationAssociate: 1,
	QualificationRegular:   2,
	QualificationActive:    3,
}

// ParseQualification accepts the canonical lowercase literal, ignoring case and
// surrounding whitespace.
func ParseQualification(raw string) (Qualification, error) {
	q := Qualification(strings.ToLower(strings.TrimSpace(raw)))
	if !q.Valid() {
		return "", Invalid("unknown qualification %q", raw)
	}
	return q, nil
}

func (q Qualification) Valid() bool {
	_, ok := qualificationRank[q]
	return ok
}

// Rank returns the position of q on the ladder, or -1 for unknown values.
func (q Qualification) Rank() int {
	if rank, ok := qualificationRank[q]; ok {
		return rank
	}
	return -1
}

// CompareQualification returns -1, 0 or 1 when a is below, equal to or above b.
func CompareQualification(a, b Qualification) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether q is a known level greater than or equal to min.
func (q Qualification) AtLeast(min Qualification) bool {
	if !q.Valid() || !min.Valid() {
		return false
	}
	return CompareQualification(q, min) >= 0
}
