package request

import (
	"context"
	"errors"
	"sync"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/internal/queue"
	"github.com/courier-mail/courier/logging"
	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("the request queue is closed")

type job[C Client] struct {
	id  string
	req Request[C]

	// merged holds the IDs of requests absorbed into req.
	merged []string
}

// Queue runs requests one at a time on a single client, in submission order. The client is opened on demand
// before each request. Consecutive requests that can be merged run as one.
type Queue[C Client] struct {
	client C
	runner *Runner[C]

	jobs *queue.CTQueue[job[C]]
	wg   sync.WaitGroup
}

func NewQueue[C Client](ctx context.Context, client C, runner *Runner[C], panicHandler async.PanicHandler) *Queue[C] {
	q := &Queue[C]{
		client: client,
		runner: runner,
		jobs:   queue.NewCTQueue[job[C]](),
	}

	q.wg.Add(1)

	logging.GoAnnotate(ctx, func(ctx context.Context) {
		defer async.HandlePanic(panicHandler)
		defer q.wg.Done()

		q.process(ctx)
	}, logging.Labels{
		"Action":   "Processing requests",
		"Protocol": client.Protocol(),
	})

	return q
}

// Submit queues req and returns the ID its events will carry.
func (q *Queue[C]) Submit(req Request[C]) (string, error) {
	id := uuid.NewString()

	if !q.jobs.Push(job[C]{id: id, req: req}) {
		return "", ErrQueueClosed
	}

	return id, nil
}

// Len returns the number of requests waiting to run.
func (q *Queue[C]) Len() int {
	return q.jobs.Len()
}

// Close lets the queued requests finish, then closes the client.
func (q *Queue[C]) Close(ctx context.Context) error {
	q.jobs.Close()
	q.wg.Wait()

	if !q.client.IsConnected() {
		return nil
	}

	err := q.client.Close(ctx)

	q.runner.publish(events.ConnectionClosed{Account: q.runner.account, Protocol: q.client.Protocol()})

	return err
}

// Abort drops the queued requests, failing each with ErrQueueClosed, and waits for the running one.
func (q *Queue[C]) Abort(ctx context.Context) {
	for _, job := range q.jobs.CloseAndRetrieveRemaining() {
		q.runner.NotifyConnectionFailed(ctx, job.id, job.req, ErrQueueClosed)
	}

	q.wg.Wait()
}

func (q *Queue[C]) process(ctx context.Context) {
	for {
		job, ok := q.jobs.PopMerged(mergeJobs[C])
		if !ok {
			return
		}

		if !q.client.IsConnected() {
			if err := q.client.Open(ctx); err != nil {
				for _, id := range append([]string{job.id}, job.merged...) {
					q.runner.NotifyConnectionFailed(ctx, id, job.req, err)
				}

				continue
			}

			q.runner.publish(events.ConnectionOpened{Account: q.runner.account, Protocol: q.client.Protocol()})
		}

		err := q.runner.Run(ctx, job.id, q.client, job.req)

		for _, id := range job.merged {
			q.runner.finish(ctx, id, job.req, err)
		}
	}
}

// mergeJobs folds next into cur if cur's request accepts it. The merged job keeps the ID of the first request.
func mergeJobs[C Client](cur, next job[C]) (job[C], bool) {
	m, ok := cur.req.(merger[C])
	if !ok {
		return cur, false
	}

	merged, ok := m.merge(next.req)
	if !ok {
		return cur, false
	}

	return job[C]{id: cur.id, req: merged, merged: append(append(cur.merged, next.id), next.merged...)}, true
}
