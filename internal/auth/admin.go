// Package auth решает, является ли пользователь администратором.
package auth

import "strings"

// AdminPolicy набор email администраторов. Сравнение без учёта регистра
// и пробелов по краям.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy создаёт политику из списка email.
func NewAdminPolicy(emails []string) *AdminPolicy {
	p := &AdminPolicy{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = normalize(e); e != "" {
			p.emails[e] = struct{}{}
		}
	}
	return p
}

// IsAdmin сообщает, входит ли email в список администраторов.
func (p *AdminPolicy) IsAdmin(email string) bool {
	if p == nil {
		return false
	}
	email = normalize(email)
	if email == "" {
		return false
	}
	_, ok := p.emails[email]
	return ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
