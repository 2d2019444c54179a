package model

import "time"

type LeadKind string

const (
	LeadContact       LeadKind = "contact"
	LeadNewsletter    LeadKind = "newsletter"
	LeadCollaboration LeadKind = "collaboration"
)

// Collection is the document store collection a lead kind is written to.
func (k LeadKind) Collection() string {
	switch k {
	case LeadContact:
		return "contacts"
	case LeadNewsletter:
		return "newsletter"
	case LeadCollaboration:
		return "collaborations"
	}
	return ""
}

// Lead is a submission captured from a public page form. Fields that do not
// apply to Kind are left empty.
type Lead struct {
	ID           string
	Kind         LeadKind
	Name         string
	Email        string
	Phone        string
	Organization string
	Message      string
	SourceIP     string
	CreatedAt    time.Time
}

// EmailVerification is the identity provider's answer to a verification
// token exchange.
type EmailVerification struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}
