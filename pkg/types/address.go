package types

import "strings"

// DeliveryAddress is the single shipping contact kept per profile.
type DeliveryAddress struct {
	FullName   string  `json:"fullName" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,min=7,max=20"`
	Email      string  `json:"email,omitempty" validate:"omitempty,email"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	Landmark   *string `json:"landmark,omitempty" validate:"omitempty,max=120"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postalCode" validate:"required,max=12"`
	Country    string  `json:"country,omitempty" validate:"omitempty,max=56"`
}

// Normalize trims every field and drops blank optional ones.
func (a DeliveryAddress) Normalize() DeliveryAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Email = strings.TrimSpace(a.Email)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = trimmedOrNil(a.Line2)
	a.Landmark = trimmedOrNil(a.Landmark)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}

// Equal reports whether a and b hold the same values, comparing optional
// fields by content.
func (a DeliveryAddress) Equal(b DeliveryAddress) bool {
	return a.FullName == b.FullName &&
		a.Phone == b.Phone &&
		a.Email == b.Email &&
		a.Line1 == b.Line1 &&
		sameOptional(a.Line2, b.Line2) &&
		sameOptional(a.Landmark, b.Landmark) &&
		a.City == b.City &&
		a.State == b.State &&
		a.PostalCode == b.PostalCode &&
		a.Country == b.Country
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Lines renders the address for a message, one part per line.
func (a DeliveryAddress) Lines() []string {
	lines := []string{a.FullName, a.Line1}
	if a.Line2 != nil {
		lines = append(lines, *a.Line2)
	}
	if a.Landmark != nil {
		lines = append(lines, "Near "+*a.Landmark)
	}
	locality := a.City + ", " + a.State + " " + a.PostalCode
	if a.Country != "" {
		locality += ", " + a.Country
	}
	lines = append(lines, locality, "Phone: "+a.Phone)
	if a.Email != "" {
		lines = append(lines, "Email: "+a.Email)
	}
	return lines
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
