package rabbitmq

import "github.com/streadway/amqp"

// Ключи маршрутизации обменника meetings.
const (
	RoutingKeyReady  = "ready"
	RoutingKeyEnroll = "enroll"

	QueueReady  = "meetings.ready"
	QueueEnroll = "meetings.enroll"
)

// Уведомления о готовых встречах читают внешние подписчики, поэтому очередь
// ограничена: устаревшие сообщения отбрасываются по TTL и по длине.
const (
	readyMessageTTL = 24 * 60 * 60 * 1000
	readyMaxLength  = 10000
)

// QueueConfig — очередь и ключ, по которому она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
	Args       amqp.Table
}

// GetMeetingQueues возвращает очереди обменника meetings.
func GetMeetingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueReady, RoutingKey: RoutingKeyReady, Args: amqp.Table{
			"x-message-ttl": int32(readyMessageTTL),
			"x-max-length":  int32(readyMaxLength),
			"x-overflow":    "drop-head",
		}},
		{QueueName: QueueEnroll, RoutingKey: RoutingKeyEnroll},
	}
}
