package audit_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"circles/internal/audit"
	"circles/internal/audit/mocks"
	"circles/pkg/domain"
)

func TestWorkerDeliversInboxToSink(t *testing.T) {
	inbox := make(chan audit.Event, 4)
	sink := audit.NewMemorySink()
	worker := audit.NewWorker(sink, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	first := audit.NewEvent(audit.ActionSignalSet, domain.NewUserID(), "", "ok", time.Now())
	second := audit.NewEvent(audit.ActionUserBlocked, domain.NewUserID(), "", "ok", time.Now())
	inbox <- first
	inbox <- second

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []audit.Event{first, second}, sink.Events())
}

func TestWorkerContinuesPastSinkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockPublisher(ctrl)
	inbox := make(chan audit.Event, 2)
	worker := audit.NewWorker(sink, inbox)

	var calls atomic.Int32
	sink.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, audit.Event) error {
		calls.Add(1)
		return errors.New("sink down")
	})
	sink.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, audit.Event) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox <- audit.NewEvent(audit.ActionSignalSet, domain.NewUserID(), "", "ok", time.Now())
	inbox <- audit.NewEvent(audit.ActionSignalSet, domain.NewUserID(), "", "ok", time.Now())

	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
