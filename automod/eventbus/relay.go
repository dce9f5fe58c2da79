package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

const relayTimeout = 5 * time.Second

// Relays every bus event, JSON encoded, to a redis pub/sub channel.
type RedisRelay struct {
	Client  *redis.Client
	Channel string
}

func NewRedisRelay(redisURL, channel string) (*RedisRelay, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisRelay{Client: rdb, Channel: channel}, nil
}

func (r *RedisRelay) Handle(ctx context.Context, evt model.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	return r.Client.Publish(ctx, r.Channel, body).Err()
}

// Relays every bus event to a kafka topic, keyed by chat so that one chat's events stay ordered within a partition.
type KafkaRelay struct {
	Writer *kafka.Writer
}

func NewKafkaRelay(brokers []string, topic string) *KafkaRelay {
	return &KafkaRelay{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: relayTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func kafkaMessage(evt model.Event) (kafka.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serializing event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.ChatID, 10)),
		Value: body,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	}, nil
}

func (k *KafkaRelay) Handle(ctx context.Context, evt model.Event) error {
	msg, err := kafkaMessage(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	return k.Writer.WriteMessages(ctx, msg)
}

func (k *KafkaRelay) Close() error {
	return k.Writer.Close()
}
