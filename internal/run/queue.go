package run

import "context"

// Handler 处理来自队列的 run ID。
type Handler func(ctx context.Context, runID string) error

// Producer 负责向队列投递 run。
type Producer interface {
	Publish(ctx context.Context, runID string) error
	Close() error
}

// Consumer 负责从队列中消费 run。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
