package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAttempt(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{"x-attempt": int32(2)}, 2},
		{amqp.Table{"x-attempt": int64(3)}, 3},
		{amqp.Table{"x-attempt": "bogus"}, 0},
	}
	for _, tc := range cases {
		if got := Attempt(amqp.Delivery{Headers: tc.headers}); got != tc.want {
			t.Errorf("Attempt(%v)=%d want %d", tc.headers, got, tc.want)
		}
	}
}

func TestQueueNames(t *testing.T) {
	if RetryQueue("usage_events") != "usage_events.retry" || DeadQueue("usage_events") != "usage_events.dlq" {
		t.Fatal("unexpected companion queue names")
	}
}
