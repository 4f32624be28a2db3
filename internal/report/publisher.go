package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"CyberAlerter/internal/model"
	"CyberAlerter/internal/utils"
)

const DefaultQueue = "vulnerability.report"

// Channel *amqp.Channel 中用到的方法
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher 把报告载荷以持久化JSON消息投递到持久队列
type Publisher struct {
	conn   *amqp.Connection
	ch     Channel
	queue  string
	logger *utils.Logger
}

// Dial 连接RabbitMQ并声明队列
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接消息队列失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开通道失败: %w", err)
	}

	p, err := NewPublisher(ch, queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("声明队列 %s 失败: %w", queue, err)
	}
	return &Publisher{
		ch:     ch,
		queue:  queue,
		logger: utils.NewLogger("publisher"),
	}, nil
}

// Publish 逐条投递，返回成功条数。单条失败不影响其余载荷。
func (p *Publisher) Publish(ctx context.Context, payloads []model.ReportPayload) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, payload := range payloads {
		body, err := json.Marshal(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
			p.logger.Error("投递 %s 的报告失败: %v", payload.ScanDetails.ProductName, err)
			errs = append(errs, err)
			continue
		}
		sent++
	}

	p.logger.Info("已投递 %d/%d 份报告到 %s", sent, len(payloads), p.queue)
	return sent, errors.Join(errs...)
}

func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
