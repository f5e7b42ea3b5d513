package watcher

// eventBatch is one unit of delivery to the consumer.
type eventBatch struct {
	events  []Event
	initial bool
}

// dispatcher serializes delivery to the single consumer callback. One
// goroutine drains the queue in order, so callback invocations never
// overlap and queue order is delivery order. The producers guarantee the
// initial batch is enqueued before any live batch.
type dispatcher struct {
	queue    chan eventBatch
	consumer Consumer
	done     chan struct{}
}

func newDispatcher(consumer Consumer, buffer int) *dispatcher {
	d := &dispatcher{
		queue:    make(chan eventBatch, buffer),
		consumer: consumer,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for batch := range d.queue {
		if len(batch.events) == 0 {
			continue
		}
		d.consumer(batch.events, batch.initial)
	}
}

// enqueue hands a batch to the delivery goroutine, blocking if the queue
// is full. Delivery to the consumer is never dropped.
func (d *dispatcher) enqueue(batch eventBatch) {
	d.queue <- batch
}

// close ends delivery after all queued batches have been drained. Called
// exactly once, by the producer that emits the terminal event.
func (d *dispatcher) close() {
	close(d.queue)
}

// doneCh is closed once the last queued batch has been delivered.
func (d *dispatcher) doneCh() <-chan struct{} {
	return d.done
}
