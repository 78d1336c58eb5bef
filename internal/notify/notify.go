package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"
)

// InviteEmailArgs is the payload of a queued invitation email
type InviteEmailArgs struct {
	WorkspaceID int64  `json:"workspace_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Token       string `json:"token"`
}

func (InviteEmailArgs) Kind() string { return "invite_email" }

// OutboundPauseAlertArgs is the payload of a queued safety-pause alert
type OutboundPauseAlertArgs struct {
	WorkspaceID int64     `json:"workspace_id"`
	OperatorID  int64     `json:"operator_id"`
	Until       time.Time `json:"until"`
}

func (OutboundPauseAlertArgs) Kind() string { return "outbound_pause_alert" }

// InviteEmailWorker delivers invitation emails. Delivery is currently a
// structured log line; the job queue gives retries and an audit trail either
// way.
type InviteEmailWorker struct {
	river.WorkerDefaults[InviteEmailArgs]
}

func (w *InviteEmailWorker) Work(ctx context.Context, job *river.Job[InviteEmailArgs]) error {
	log.Info().
		Int64("workspace_id", job.Args.WorkspaceID).
		Str("email", job.Args.Email).
		Str("role", job.Args.Role).
		Msg("Dispatching workspace invitation email")
	return nil
}

// OutboundPauseAlertWorker notifies workspace staff that outbound messaging
// was paused
type OutboundPauseAlertWorker struct {
	river.WorkerDefaults[OutboundPauseAlertArgs]
}

func (w *OutboundPauseAlertWorker) Work(ctx context.Context, job *river.Job[OutboundPauseAlertArgs]) error {
	log.Info().
		Int64("workspace_id", job.Args.WorkspaceID).
		Int64("operator_id", job.Args.OperatorID).
		Time("until", job.Args.Until).
		Msg("Dispatching outbound pause alert")
	return nil
}

// Queue is the asynchronous notification dispatcher, backed by a Postgres job
// queue. It satisfies the copilot Notifier interface.
type Queue struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
}

// NewQueue opens a connection pool and configures the job client
func NewQueue(ctx context.Context, databaseURL string) (*Queue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &InviteEmailWorker{})
	river.AddWorker(workers, &OutboundPauseAlertWorker{})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Queue{pool: pool, client: client}, nil
}

// Start begins background job processing
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop drains workers and closes the pool
func (q *Queue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// EnqueueInviteEmail queues an invitation email for delivery
func (q *Queue) EnqueueInviteEmail(ctx context.Context, workspaceID int64, email, role, token string) error {
	_, err := q.client.Insert(ctx, InviteEmailArgs{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
	}, nil)
	return err
}

// EnqueueOutboundPauseAlert queues a staff alert about a safety pause
func (q *Queue) EnqueueOutboundPauseAlert(ctx context.Context, workspaceID, operatorID int64, until time.Time) error {
	_, err := q.client.Insert(ctx, OutboundPauseAlertArgs{
		WorkspaceID: workspaceID,
		OperatorID:  operatorID,
		Until:       until,
	}, nil)
	return err
}
