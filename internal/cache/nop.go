package cache

import (
	"context"
	"time"
)

// Nop кеш без хранения, когда redis не настроен. Каждое чтение промах.
type Nop struct{}

// Get всегда сообщает об отсутствии ключа.
func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set ничего не делает.
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }

// Invalidate ничего не делает.
func (Nop) Invalidate(context.Context, ...string) error { return nil }
