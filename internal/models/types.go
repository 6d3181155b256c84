package models

import "time"

// SocialStyle is the quadrant a respondent falls into.
type SocialStyle string

const (
	StyleDriver     SocialStyle = "DRIVER"
	StyleExpressive SocialStyle = "EXPRESSIVE"
	StyleAmiable    SocialStyle = "AMIABLE"
	StyleAnalytical SocialStyle = "ANALYTICAL"
)

// Category is the axis a question contributes to.
type Category string

const (
	CategoryAssertiveness  Category = "assertiveness"
	CategoryResponsiveness Category = "responsiveness"
)

// Question formats seen across historical question sets.
const (
	FormatLikert = "likert"
	FormatPaired = "paired"
)

// Question belongs to exactly one assessment and never changes once published.
type Question struct {
	ID         int      `json:"id" yaml:"id"`
	Text       string   `json:"text" yaml:"text"`
	Category   Category `json:"category" yaml:"category"`
	Format     string   `json:"format,omitempty" yaml:"format,omitempty"`
	LeftLabel  string   `json:"left_label,omitempty" yaml:"left_label,omitempty"`
	RightLabel string   `json:"right_label,omitempty" yaml:"right_label,omitempty"`
}

// Assessment is versioned by replacing the whole record.
type Assessment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	ScaleMax    int        `json:"scale_max"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ResponseSet maps a question id (decimal string) to the chosen answer.
type ResponseSet map[string]int

// Result is one scored submission. Scores and style are fixed at creation.
type Result struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	AssessmentID        string      `json:"assessment_id"`
	Responses           ResponseSet `json:"responses"`
	AssertivenessScore  float64     `json:"assertiveness_score"`
	ResponsivenessScore float64     `json:"responsiveness_score"`
	SocialStyle         SocialStyle `json:"social_style"`
	CreatedAt           time.Time   `json:"created_at"`
}

// User is an account or a guest placeholder created by quick-join.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	PassHash  []byte     `json:"-"`
	IsAdmin   bool       `json:"is_admin"`
	IsGuest   bool       `json:"is_guest,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// DisplayName prefers the name and falls back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Membership is unique per (TeamID, UserID).
type Membership struct {
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type InviteStatus string

const (
	InvitePending      InviteStatus = "pending"
	InviteAccepted     InviteStatus = "accepted"
	InviteRejected     InviteStatus = "rejected"
	InviteExpired      InviteStatus = "expired"
	InviteAutoAccepted InviteStatus = "auto_accepted"
)

// Invite is an email invitation to a team. Expired is never stored; it is
// derived from ExpiresAt when the invite is read.
type Invite struct {
	Token     string       `json:"token"`
	TeamID    string       `json:"team_id"`
	Email     string       `json:"email"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// IsExpired reports whether now is strictly after the expiry time.
func (i *Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus is the stored status, except a pending invite past its
// expiry reads as expired.
func (i *Invite) EffectiveStatus(now time.Time) InviteStatus {
	if i.Status == InvitePending && i.IsExpired(now) {
		return InviteExpired
	}
	return i.Status
}

// IsTerminal reports whether the stored status can no longer change.
func (s InviteStatus) IsTerminal() bool {
	switch s {
	case InviteAccepted, InviteRejected, InviteAutoAccepted:
		return true
	default:
		return false
	}
}
