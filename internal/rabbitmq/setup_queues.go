package rabbitmq

// Exchange обменник событий о планах пользователей.
const Exchange = "plans"

const (
	// RoutingExpired ключ событий об истечении плана.
	RoutingExpired = "expired"
	// RoutingChanged ключ событий о назначении плана администратором.
	RoutingChanged = "changed"
)

// Очереди, из которых читает обработчик уведомлений.
const (
	QueueExpired = "plans.expired"
	QueueChanged = "plans.changed"
)

// QueueConfig описывает очередь и ключ маршрутизации, которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetPlanQueues возвращает очереди для событий о планах.
func GetPlanQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueExpired, RoutingKey: RoutingExpired},
		{QueueName: QueueChanged, RoutingKey: RoutingChanged},
	}
}
