package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-realtime/internal/queue"
)

// RabbitNotifier publishes booking events to the durable booking queue.
// Each Notify runs in its own goroutine with a bounded timeout so a slow
// broker never delays the request that produced the event.
type RabbitNotifier struct {
    URL     string
    Timeout time.Duration
    Log     *zap.Logger
}

// Notify publishes ev in the background.  Errors are logged only.
func (n *RabbitNotifier) Notify(ctx context.Context, ev queue.BookingEvent) {
    go func() {
        timeout := n.Timeout
        if timeout <= 0 {
            timeout = 5 * time.Second
        }
        pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
        defer cancel()
        if err := n.Publish(pctx, ev); err != nil && n.Log != nil {
            n.Log.Warn("publish booking event failed",
                zap.String("kind", ev.Kind),
                zap.String("code", ev.Code),
                zap.Error(err),
            )
        }
    }()
}

// Publish sends ev to the booking queue and waits for the write to finish.
// Messages are marked as persistent.
func (n *RabbitNotifier) Publish(ctx context.Context, ev queue.BookingEvent) error {
    conn, err := amqp.Dial(n.URL)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queue.BookingQueueName, // name
        true,                   // durable
        false,                  // autoDelete
        false,                  // exclusive
        false,                  // noWait
        nil,                    // args
    ); err != nil {
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    return ch.PublishWithContext(ctx,
        "",                     // default exchange
        queue.BookingQueueName, // routing key = queue name
        false,                  // mandatory
        false,                  // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent, // store on disk
            Timestamp:    time.Now().UTC(),
            Type:         ev.Kind,
            Body:         body,
        },
    )
}
