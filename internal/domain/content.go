package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is an ordered collection of records keyed by a server-assigned id
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	// Update applies fn to the stored record and returns the result
	Update(ctx context.Context, id string, fn func(*T)) (T, error)
	Delete(ctx context.Context, id string) error
}

// Record is the pointer constraint stores use to stamp ids and timestamps
type Record[T any] interface {
	*T
	RecordID() string
	Assign(id string, now time.Time)
	Touch(now time.Time)
}

// Patch is a partial update; only fields present in the request are applied
type Patch[T any] interface {
	Apply(*T)
}

type (
	TeamRepository    = Store[TeamMember]
	ProjectRepository = Store[Project]
)

// TeamMember is a consultant shown on the team page
type TeamMember struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Position        string    `json:"position"`
	Image           string    `json:"image"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Experience      string    `json:"experience"`
	Qualifications  []string  `json:"qualifications"`
	Specializations []string  `json:"specializations"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (m *TeamMember) RecordID() string { return m.ID }

func (m *TeamMember) Assign(id string, now time.Time) {
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Qualifications == nil {
		m.Qualifications = []string{}
	}
	if m.Specializations == nil {
		m.Specializations = []string{}
	}
}

func (m *TeamMember) Touch(now time.Time) { m.UpdatedAt = now }

// TeamMemberPatch is the body of PUT /api/team/{id}
type TeamMemberPatch struct {
	Name            *string   `json:"name"`
	Position        *string   `json:"position"`
	Image           *string   `json:"image"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	Experience      *string   `json:"experience"`
	Qualifications  *[]string `json:"qualifications"`
	Specializations *[]string `json:"specializations"`
}

func (p TeamMemberPatch) Apply(m *TeamMember) {
	setIf(&m.Name, p.Name)
	setIf(&m.Position, p.Position)
	setIf(&m.Image, p.Image)
	setIf(&m.Email, p.Email)
	setIf(&m.Phone, p.Phone)
	setIf(&m.Experience, p.Experience)
	setIf(&m.Qualifications, p.Qualifications)
	setIf(&m.Specializations, p.Specializations)
}

// Project is a portfolio entry
type Project struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Image       string     `json:"image"`
	Status      string     `json:"status"`
	Year        FlexString `json:"year"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (p *Project) RecordID() string { return p.ID }

func (p *Project) Assign(id string, now time.Time) {
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
}

func (p *Project) Touch(now time.Time) { p.UpdatedAt = now }

// ProjectPatch is the body of PUT /api/projects/{id}
type ProjectPatch struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Category    *string     `json:"category"`
	Image       *string     `json:"image"`
	Status      *string     `json:"status"`
	Year        *FlexString `json:"year"`
}

func (p ProjectPatch) Apply(pr *Project) {
	setIf(&pr.Title, p.Title)
	setIf(&pr.Description, p.Description)
	setIf(&pr.Category, p.Category)
	setIf(&pr.Image, p.Image)
	setIf(&pr.Status, p.Status)
	setIf(&pr.Year, p.Year)
}

// FlexString accepts a JSON string or number and keeps its text as given
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func setIf[V any](dst *V, src *V) {
	if src != nil {
		*dst = *src
	}
}
