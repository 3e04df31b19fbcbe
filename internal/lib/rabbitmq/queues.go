package rabbitmq

const (
	// NotificationsExchange exchange для всех уведомлений.
	NotificationsExchange = "notifications"
	// EmailQueue очередь писем, которую читает sender.
	EmailQueue = "notifications.email"
	// EmailRoutingKey ключ маршрутизации писем.
	EmailRoutingKey = "email"

	prefetchCount = 10
)

// QueueConfig очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EmailQueue, RoutingKey: EmailRoutingKey},
	}
}
