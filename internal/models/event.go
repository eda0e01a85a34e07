package models

// PlanEvent сообщение об изменении плана пользователя, публикуемое в брокер.
type PlanEvent struct {
	EventID     string  `json:"event_id"`
	UserID      string  `json:"user_id"`
	Email       string  `json:"email,omitempty"`
	PlanType    string  `json:"plan_type"`
	IsActive    bool    `json:"is_active"`
	PlanEndTime *string `json:"plan_end_time,omitempty"`
	Source      string  `json:"source"` // gate, sweep или admin
	Actor       string  `json:"actor,omitempty"`
	OccurredAt  string  `json:"occurred_at"`
}
