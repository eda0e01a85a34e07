// Package plan содержит правила жизненного цикла тарифного плана пользователя:
// вычисление даты окончания, проверку истечения и переходы состояния.
// Функции пакета чистые: текущее время передаётся явно, сохранение результата
// остаётся на вызывающей стороне.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type тип тарифного плана.
type Type string

const (
	// Daily дневной план, истекает при смене календарного дня UTC.
	Daily Type = "Daily"
	// Monthly месячный план.
	Monthly Type = "Monthly"
	// Yearly годовой план.
	Yearly Type = "Yearly"
	// Expired терминальное состояние без доступа.
	Expired Type = "Expired"
)

var (
	// ErrInvalidPlanType возвращается для значения вне перечисления.
	ErrInvalidPlanType = errors.New("invalid plan type")
	// ErrInvalidDate возвращается, если явную дату окончания не удалось разобрать.
	ErrInvalidDate = errors.New("invalid plan end time")
)

// Types все допустимые значения в порядке отображения.
var Types = []Type{Daily, Monthly, Yearly, Expired}

// State поля пользователя, которыми управляет политика.
type State struct {
	PlanType    *Type
	IsActive    bool
	PlanEndTime *time.Time
}

// ParseType разбирает строковое значение плана. Регистр учитывается,
// как и в хранилище.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlanType, s)
}

var endTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseEndTime разбирает явную дату окончания. Время без зоны считается UTC.
func ParseEndTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range endTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ComputeEndTime возвращает дату окончания нового плана, купленного в момент now.
// Месяцы и годы прибавляются календарно через AddDate.
func ComputeEndTime(t Type, now time.Time) *time.Time {
	var end time.Time
	switch t {
	case Daily:
		end = now.AddDate(0, 0, 1)
	case Monthly:
		end = now.AddDate(0, 1, 0)
	case Yearly:
		end = now.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &end
}

// IsExpired сообщает, истёк ли план к моменту now.
//
// Дневной план дополнительно считается истёкшим, если календарная дата UTC
// момента now отличается от даты окончания, в любую сторону.
func IsExpired(s State, now time.Time) bool {
	if s.PlanEndTime == nil {
		return false
	}
	if now.After(*s.PlanEndTime) {
		return true
	}
	if s.PlanType != nil && *s.PlanType == Daily {
		return !sameUTCDate(now, *s.PlanEndTime)
	}
	return false
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ApplyExpiry переводит состояние в Expired. Повторное применение ничего не меняет.
func ApplyExpiry(_ State) State {
	expired := Expired
	return State{
		PlanType:    &expired,
		IsActive:    false,
		PlanEndTime: nil,
	}
}

// ApplyPlanChange назначает план newType. Для Expired эквивалентно ApplyExpiry.
// Если explicitEnd задан и не пуст, дата окончания берётся из него, иначе
// вычисляется через ComputeEndTime. При ошибке возвращается исходное состояние.
func ApplyPlanChange(s State, newType string, explicitEnd *string, now time.Time) (State, error) {
	t, err := ParseType(newType)
	if err != nil {
		return s, err
	}
	if t == Expired {
		return ApplyExpiry(s), nil
	}

	end := ComputeEndTime(t, now)
	if explicitEnd != nil && strings.TrimSpace(*explicitEnd) != "" {
		parsed, err := ParseEndTime(*explicitEnd)
		if err != nil {
			return s, err
		}
		end = &parsed
	}

	return State{
		PlanType:    &t,
		IsActive:    true,
		PlanEndTime: end,
	}, nil
}
