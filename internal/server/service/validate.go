package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	server "github.com/charadev96/ratewise/internal/server/domain"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
)

const (
	minNameLen        = 3
	maxNameLen        = 32
	minPasswordLen    = 8
	maxPasswordLen    = 72
	maxEmailLen       = 254
	minTitleLen       = 1
	maxTitleLen       = 120
	maxDescriptionLen = 4000
	maxCategoryLen    = 40
	minReviewLen      = 1
	maxReviewLen      = 2000
)

type problems []string

func (p *problems) lengthBetween(field, value string, lo, hi int) {
	n := utf8.RuneCountInString(value)
	if n < lo || n > hi {
		*p = append(*p, fmt.Sprintf("%s must be between %d and %d characters", field, lo, hi))
	}
}

func (p *problems) maxLength(field, value string, hi int) {
	if utf8.RuneCountInString(value) > hi {
		*p = append(*p, fmt.Sprintf("%s must be at most %d characters", field, hi))
	}
}

func (p *problems) err() error {
	if len(*p) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(*p, "; "))
}

func validateName(p *problems, name string) {
	p.lengthBetween("name", name, minNameLen, maxNameLen)
	for _, r := range name {
		if !(r == '_' || r == '-' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			*p = append(*p, "name may only contain letters, digits, '.', '-' and '_'")
			break
		}
	}
}

func validatePassword(p *problems, password string) {
	// bcrypt ignores everything past 72 bytes
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		*p = append(*p, fmt.Sprintf("password must be between %d and %d bytes", minPasswordLen, maxPasswordLen))
	}
}

func validateEmail(p *problems, email string) {
	if len(email) > maxEmailLen {
		*p = append(*p, fmt.Sprintf("email must be at most %d characters", maxEmailLen))
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		*p = append(*p, "email is not a valid address")
	}
}

func validateSignUp(in SignUpInput) error {
	var p problems
	validateName(&p, in.Name)
	validateEmail(&p, in.Email)
	validatePassword(&p, in.Password)
	return p.err()
}

func validateSignIn(in SignInInput) error {
	var p problems
	if in.Name == "" {
		p = append(p, "name is required")
	}
	if in.Password == "" {
		p = append(p, "password is required")
	}
	return p.err()
}

func validateItemInput(in ItemInput) error {
	var p problems
	p.lengthBetween("title", strings.TrimSpace(in.Title), minTitleLen, maxTitleLen)
	p.maxLength("description", in.Description, maxDescriptionLen)
	p.lengthBetween("category", in.Category, 1, maxCategoryLen)
	return p.err()
}

func validateItemUpdate(upd server.ItemUpdate) error {
	var p problems
	if upd.Title == nil && upd.Description == nil && upd.Category == nil {
		p = append(p, "at least one field must be set")
	}
	if upd.Title != nil {
		p.lengthBetween("title", strings.TrimSpace(*upd.Title), minTitleLen, maxTitleLen)
	}
	if upd.Description != nil {
		p.maxLength("description", *upd.Description, maxDescriptionLen)
	}
	if upd.Category != nil {
		p.lengthBetween("category", *upd.Category, 1, maxCategoryLen)
	}
	return p.err()
}

func validateReviewInput(in ReviewInput) error {
	var p problems
	p.lengthBetween("body", strings.TrimSpace(in.Body), minReviewLen, maxReviewLen)
	if in.Rating < server.MinRating || in.Rating > server.MaxRating {
		p = append(p, fmt.Sprintf("rating must be between %d and %d", server.MinRating, server.MaxRating))
	}
	return p.err()
}
