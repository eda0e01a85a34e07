// Package models содержит доменную модель пользователя портала и
// статический каталог игр. Структуры используются в бизнес‑логике,
// хранилище и в JSON‑ответах.
package models

import (
	"time"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
)

// User представляет пользователя портала вместе с полями подписки.
type User struct {
	ID          string     `json:"id"`    // Идентификатор от провайдера идентификации
	Email       string     `json:"email"` // Электронная почта (уникальная)
	Name        string     `json:"name"`
	PlanType    *plan.Type `json:"planType"`    // nil, если план ни разу не назначался
	IsActive    bool       `json:"isActive"`    // Доступ к платному контенту
	PlanEndTime *time.Time `json:"planEndTime"` // nil — нет активной даты окончания
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PlanState возвращает поля, которыми управляет политика плана.
func (u User) PlanState() plan.State {
	return plan.State{
		PlanType:    u.PlanType,
		IsActive:    u.IsActive,
		PlanEndTime: u.PlanEndTime,
	}
}

// WithPlanState возвращает копию пользователя с новым состоянием плана.
func (u User) WithPlanState(s plan.State) User {
	u.PlanType = s.PlanType
	u.IsActive = s.IsActive
	u.PlanEndTime = s.PlanEndTime
	return u
}

// Identity данные текущей сессии, полученные от провайдера идентификации.
type Identity struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture,omitempty"`
}

// DisplayName собирает имя для новой записи пользователя.
func (i Identity) DisplayName() string {
	return i.GivenName + " " + i.FamilyName
}
