package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. km.Topic names the source topic. A Before error skips
// the handler and sends the message down the failure path (Failed, dead letter, commit).
type ConsumerHook interface {
	Before(ctx context.Context, km kafka.Message) (context.Context, error)
	After(ctx context.Context, km kafka.Message, err error)
	Failed(ctx context.Context, km kafka.Message, attempts int, err error)
}

// HookFuncs implements ConsumerHook from plain functions. Nil functions are no-ops.
type HookFuncs struct {
	BeforeFunc func(context.Context, kafka.Message) (context.Context, error)
	AfterFunc  func(context.Context, kafka.Message, error)
	FailedFunc func(context.Context, kafka.Message, int, error)
}

func (h HookFuncs) Before(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.BeforeFunc == nil {
		return ctx, nil
	}
	return h.BeforeFunc(ctx, km)
}

func (h HookFuncs) After(ctx context.Context, km kafka.Message, err error) {
	if h.AfterFunc != nil {
		h.AfterFunc(ctx, km, err)
	}
}

func (h HookFuncs) Failed(ctx context.Context, km kafka.Message, attempts int, err error) {
	if h.FailedFunc != nil {
		h.FailedFunc(ctx, km, attempts, err)
	}
}

// guarded runs an observer callback. A panicking observer must not take a worker down.
func guarded(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
