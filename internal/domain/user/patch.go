package user

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Nullable carries a value for a partial update. Set distinguishes "absent" from
// an explicit null (Set with Value nil).
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func Value[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }
func Null[T any]() Nullable[T]     { return Nullable[T]{Set: true} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ProfilePatch is a partial profile update. Only Set fields are written.
type ProfilePatch struct {
	FullName           Nullable[string]   `json:"full_name"`
	CitizenshipCountry Nullable[string]   `json:"citizenship_country"`
	DestinationCountry Nullable[string]   `json:"destination_country"`
	GPA                Nullable[float64]  `json:"gpa"`
	Budget             Nullable[float64]  `json:"budget"`
	IntendedMajor      Nullable[string]   `json:"intended_major"`
	Extracurriculars   Nullable[[]string] `json:"extracurriculars"`
}

// Empty reports whether the patch would write nothing.
func (p ProfilePatch) Empty() bool {
	return !p.FullName.Set && !p.CitizenshipCountry.Set && !p.DestinationCountry.Set &&
		!p.GPA.Set && !p.Budget.Set && !p.IntendedMajor.Set && !p.Extracurriculars.Set
}

// Validate rejects values no profile can hold.
func (p ProfilePatch) Validate() error {
	if p.GPA.Set && p.GPA.Value != nil && (*p.GPA.Value < 0 || *p.GPA.Value > 10) {
		return fmt.Errorf("gpa out of range: %v", *p.GPA.Value)
	}
	if p.Budget.Set && p.Budget.Value != nil && *p.Budget.Value < 0 {
		return fmt.Errorf("budget must be >= 0")
	}
	return nil
}

// ApplyTo returns a copy of profile with the patch applied.
func (p ProfilePatch) ApplyTo(profile UserProfile) UserProfile {
	out := profile
	if p.FullName.Set {
		out.FullName = deref(p.FullName.Value)
	}
	if p.CitizenshipCountry.Set {
		out.CitizenshipCountry = deref(p.CitizenshipCountry.Value)
	}
	if p.DestinationCountry.Set {
		out.DestinationCountry = deref(p.DestinationCountry.Value)
	}
	if p.GPA.Set {
		out.GPA = copyPtr(p.GPA.Value)
	}
	if p.Budget.Set {
		out.Budget = copyPtr(p.Budget.Value)
	}
	if p.IntendedMajor.Set {
		out.IntendedMajor = copyPtr(p.IntendedMajor.Value)
	}
	if p.Extracurriculars.Set {
		if p.Extracurriculars.Value == nil {
			out.Extracurriculars = nil
		} else {
			out.Extracurriculars = append([]string(nil), (*p.Extracurriculars.Value)...)
		}
	}
	return out
}

// Columns lists the column names the patch writes, for a Select(...).Updates(struct) call.
func (p ProfilePatch) Columns() []string {
	var cols []string
	if p.FullName.Set {
		cols = append(cols, "full_name")
	}
	if p.CitizenshipCountry.Set {
		cols = append(cols, "citizenship_country")
	}
	if p.DestinationCountry.Set {
		cols = append(cols, "destination_country")
	}
	if p.GPA.Set {
		cols = append(cols, FieldGPA)
	}
	if p.Budget.Set {
		cols = append(cols, FieldBudget)
	}
	if p.IntendedMajor.Set {
		cols = append(cols, FieldIntendedMajor)
	}
	if p.Extracurriculars.Set {
		cols = append(cols, FieldExtracurriculars)
	}
	return cols
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
