package domain

import "testing"

func TestCompareQualificationIsTotalOrder(t *testing.T) {
	ladder := []Qualification{
		QualificationPending,
		QualificationAssociate,
		QualificationRegular,
		QualificationActive,
	}
	for i, a := range ladder {
		for j, b := range ladder {
			want := 0
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if got := CompareQualification(a, b); got != want {
				t.Fatalf("compare(%s, %s) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		q    Qualification
		min  Qualification
		want bool
	}{
		{QualificationPending, QualificationAssociate, false},
		{QualificationAssociate, QualificationAssociate, true},
		{QualificationAssociate, QualificationRegular, false},
		{QualificationActive, QualificationRegular, true},
		{Qualification("alumni"), QualificationPending, false},
		{QualificationActive, Qualification("alumni"), false},
	}
	for _, tt := range tests {
		if got := tt.q.AtLeast(tt.min); got != tt.want {
			t.Fatalf("%s.AtLeast(%s) = %v, want %v", tt.q, tt.min, got, tt.want)
		}
	}
}

func TestParseQualification(t *testing.T) {
	q, err := ParseQualification("  Regular ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q != QualificationRegular {
		t.Fatalf("expected regular, got %s", q)
	}

	_, err = ParseQualification("leader")
	if !IsDomainError(err, ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}
