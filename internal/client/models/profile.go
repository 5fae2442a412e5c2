package models

import (
	"encoding/json"
	"strings"
)

// SkillEndorsement records one user's endorsement of a skill.
type SkillEndorsement struct {
	ID                 int64  `json:"id"`
	EndorsedBy         int64  `json:"endorsed_by"`
	EndorsedByUsername string `json:"endorsed_by_username"`
	CreatedAt          string `json:"created_at"`
}

// Skill is a listed skill on a profile together with its endorsement state.
type Skill struct {
	ID               int64              `json:"id"`
	Nama             string             `json:"nama"`
	Level            string             `json:"level,omitempty"`
	EndorsementCount int                `json:"endorsement_count"`
	UserHasEndorsed  bool               `json:"user_has_endorsed"`
	Endorsements     []SkillEndorsement `json:"endorsements,omitempty"`
}

// Profile is a student ("mahasiswa") as returned by the detail endpoint.
type Profile struct {
	ID         int64   `json:"id"`
	Nama       string  `json:"nama"`
	NIM        string  `json:"nim"`
	Prodi      string  `json:"prodi"`
	Email      string  `json:"email"`
	Bio        string  `json:"bio"`
	FotoProfil string  `json:"foto_profil,omitempty"`
	LinkedIn   string  `json:"linkedin,omitempty"`
	GitHub     string  `json:"github,omitempty"`
	ViewsCount int64   `json:"views_count"`
	IsActive   bool    `json:"is_active"`
	Skills     []Skill `json:"skills"`
}

// Clone returns a deep copy, so callers can hand out snapshots without
// sharing skill slices.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Skills != nil {
		c.Skills = make([]Skill, len(p.Skills))
		for i, s := range p.Skills {
			s.Endorsements = append([]SkillEndorsement(nil), s.Endorsements...)
			c.Skills[i] = s
		}
	}
	return &c
}

// Exists reports whether p is a stored profile. GET /mahasiswa/my-profile/
// answers with an id-less body for users who have not created one yet.
func (p *Profile) Exists() bool {
	return p != nil && p.ID != 0
}

// Skill returns the skill with the given id.
func (p *Profile) Skill(id int64) (Skill, bool) {
	if p == nil {
		return Skill{}, false
	}
	for _, s := range p.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// WithEndorsement returns a copy in which only skill id has its count moved by
// delta (never below zero) and its endorsed flag set to endorsed. Everything
// else is left as is. The boolean reports whether the skill was found.
func (p *Profile) WithEndorsement(id int64, delta int, endorsed bool) (*Profile, bool) {
	c := p.Clone()
	if c == nil {
		return nil, false
	}
	for i := range c.Skills {
		if c.Skills[i].ID != id {
			continue
		}
		n := c.Skills[i].EndorsementCount + delta
		if n < 0 {
			n = 0
		}
		c.Skills[i].EndorsementCount = n
		c.Skills[i].UserHasEndorsed = endorsed
		return c, true
	}
	return c, false
}

// ProfileSummary is a list item from GET /mahasiswa/.
type ProfileSummary struct {
	ID         int64  `json:"id"`
	Nama       string `json:"nama"`
	NIM        string `json:"nim"`
	Prodi      string `json:"prodi"`
	ViewsCount int64  `json:"views_count"`
}

// ProfilePage accepts both a paginated envelope and a bare JSON array.
type ProfilePage struct {
	Count   int              `json:"count"`
	Results []ProfileSummary `json:"results"`
}

func (pp *ProfilePage) UnmarshalJSON(b []byte) error {
	var list []ProfileSummary
	if err := json.Unmarshal(b, &list); err == nil {
		pp.Results = list
		pp.Count = len(list)
		return nil
	}

	type envelope ProfilePage
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	*pp = ProfilePage(env)
	if pp.Count == 0 {
		pp.Count = len(pp.Results)
	}
	return nil
}

// ViewResult is returned by POST /mahasiswa/{id}/view/.
type ViewResult struct {
	Counted    bool  `json:"counted"`
	TotalViews int64 `json:"total_views"`
}

// ProfileUpdate is the body of POST /mahasiswa/, which creates the caller's
// profile or updates the existing one. Empty fields are left out and keep
// their stored value. Skills are names to add.
type ProfileUpdate struct {
	Nama     string   `json:"nama,omitempty"`
	NIM      string   `json:"nim,omitempty"`
	Prodi    string   `json:"prodi,omitempty"`
	Email    string   `json:"email,omitempty"`
	Bio      string   `json:"bio,omitempty"`
	LinkedIn string   `json:"linkedin,omitempty"`
	GitHub   string   `json:"github,omitempty"`
	Skills   []string `json:"-"`
}

// MarshalJSON sends skills as a JSON-encoded string field, the shape the
// backend reads from its multipart form.
func (u ProfileUpdate) MarshalJSON() ([]byte, error) {
	type fields ProfileUpdate
	out := struct {
		fields
		Skills string `json:"skills,omitempty"`
	}{fields: fields(u)}
	if len(u.Skills) > 0 {
		b, err := json.Marshal(u.Skills)
		if err != nil {
			return nil, err
		}
		out.Skills = string(b)
	}
	return json.Marshal(out)
}

// Changes returns u trimmed and without the fields that already match cur.
// Skills cur already lists are dropped too. A nil cur keeps every non-empty
// field.
func (u ProfileUpdate) Changes(cur *Profile) ProfileUpdate {
	var base Profile
	if cur != nil {
		base = *cur
	}
	pick := func(next, prev string) string {
		next = strings.TrimSpace(next)
		if next == prev {
			return ""
		}
		return next
	}

	out := ProfileUpdate{
		Nama:     pick(u.Nama, base.Nama),
		NIM:      pick(u.NIM, base.NIM),
		Prodi:    pick(u.Prodi, base.Prodi),
		Email:    pick(u.Email, base.Email),
		Bio:      pick(u.Bio, base.Bio),
		LinkedIn: pick(u.LinkedIn, base.LinkedIn),
		GitHub:   pick(u.GitHub, base.GitHub),
	}

	have := make(map[string]bool, len(base.Skills))
	for _, s := range base.Skills {
		have[strings.ToLower(s.Nama)] = true
	}
	for _, name := range u.Skills {
		name = strings.TrimSpace(name)
		if name == "" || have[strings.ToLower(name)] {
			continue
		}
		have[strings.ToLower(name)] = true
		out.Skills = append(out.Skills, name)
	}
	return out
}

// IsEmpty reports whether u would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Nama == "" && u.NIM == "" && u.Prodi == "" && u.Email == "" &&
		u.Bio == "" && u.LinkedIn == "" && u.GitHub == "" && len(u.Skills) == 0
}
