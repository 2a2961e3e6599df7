// ABOUTME: Tests for audiobook task submission and status lookup
// ABOUTME: Uses store.MockStore and a fake library for book existence checks

package audiobook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/library"
	"github.com/2389/shelf-gateway/internal/store"
)

type fakeBook struct{ id int64 }

func (b fakeBook) ID() int64            { return b.id }
func (b fakeBook) DisplayTitle() string { return "Book" }

type fakeLibrary struct {
	typ   library.Type
	known map[int64]bool
	err   error
}

func (f *fakeLibrary) Type() library.Type { return f.typ }

func (f *fakeLibrary) Recent(context.Context, *auth.Principal, int) ([]library.Book, error) {
	return nil, nil
}

func (f *fakeLibrary) Details(_ context.Context, _ *auth.Principal, id int64) (library.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.known[id] {
		return nil, library.ErrBookNotFound
	}
	return fakeBook{id: id}, nil
}

func (f *fakeLibrary) OpenBook(context.Context, *auth.Principal, int64) (*library.BookFile, error) {
	return nil, library.ErrNoReadableFormat
}

var (
	alice = &auth.Principal{ID: 1, Username: "alice"}
	bob   = &auth.Principal{ID: 2, Username: "bob"}
)

func setupService(t *testing.T) (*Service, *store.MockStore, *fakeLibrary) {
	t.Helper()
	tasks := store.NewMockStore()
	cal := &fakeLibrary{typ: library.Calibre, known: map[int64]bool{10: true, 11: true}}
	anx := &fakeLibrary{typ: library.Anx, known: map[int64]bool{10: true}}
	return NewService(tasks, library.NewLibraries(cal, anx), nil), tasks, cal
}

func TestSubmit_QueuesTask(t *testing.T) {
	svc, tasks, _ := setupService(t)
	ctx := context.Background()

	reply, err := svc.Submit(ctx, alice, 10, library.Calibre)
	require.NoError(t, err)
	sub, ok := reply.(Submission)
	require.True(t, ok, "got %T", reply)
	assert.Equal(t, StatusStarted, sub.Status)
	assert.Len(t, sub.TaskID, 36)

	task, err := tasks.GetAudiobookTask(ctx, sub.TaskID)
	require.NoError(t, err)
	assert.Equal(t, store.AudiobookPending, task.Status)
	assert.Equal(t, int64(1), task.UserID)
	assert.Equal(t, int64(10), task.BookID)
	assert.Equal(t, "calibre", task.LibraryType)
}

func TestSubmit_DeduplicatesRunningTask(t *testing.T) {
	svc, tasks, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, alice, 10, library.Calibre)
	require.NoError(t, err)
	firstID := first.(Submission).TaskID

	// Calibre is shared, so bob sees alice's running task.
	again, err := svc.Submit(ctx, bob, 10, library.Calibre)
	require.NoError(t, err)
	assert.Equal(t, Submission{Status: StatusAlreadyInProgress, TaskID: firstID}, again)

	task, err := tasks.GetAudiobookTask(ctx, firstID)
	require.NoError(t, err)
	task.Status = store.AudiobookProcessing
	require.NoError(t, tasks.UpdateAudiobookTask(ctx, task))

	again, err = svc.Submit(ctx, alice, 10, library.Calibre)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyInProgress, again.(Submission).Status)

	for _, status := range []store.AudiobookStatus{store.AudiobookCompleted, store.AudiobookError} {
		task.Status = status
		require.NoError(t, tasks.UpdateAudiobookTask(ctx, task))

		next, err := svc.Submit(ctx, alice, 10, library.Calibre)
		require.NoError(t, err)
		sub := next.(Submission)
		assert.Equal(t, StatusStarted, sub.Status, "after %s", status)
		assert.NotEqual(t, firstID, sub.TaskID)

		// Finish the new task so the next iteration can submit again.
		created, err := tasks.GetAudiobookTask(ctx, sub.TaskID)
		require.NoError(t, err)
		created.Status = store.AudiobookCompleted
		require.NoError(t, tasks.UpdateAudiobookTask(ctx, created))
	}
}

func TestSubmit_AnxTasksArePerUser(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, alice, 10, library.Anx)
	require.NoError(t, err)

	other, err := svc.Submit(ctx, bob, 10, library.Anx)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, other.(Submission).Status)
	assert.NotEqual(t, first.(Submission).TaskID, other.(Submission).TaskID)
}

func TestSubmit_UnknownBook(t *testing.T) {
	svc, _, cal := setupService(t)
	ctx := context.Background()

	reply, err := svc.Submit(ctx, alice, 99, library.Calibre)
	require.NoError(t, err)
	assert.Equal(t, ErrorReply{Error: "Book 99 not found in calibre library."}, reply)

	cal.err = errors.New("calibre unreachable")
	_, err = svc.Submit(ctx, alice, 11, library.Calibre)
	assert.ErrorContains(t, err, "calibre unreachable")
}

func TestSubmit_WithoutLibraryCheck(t *testing.T) {
	svc := NewService(store.NewMockStore(), nil, nil)
	reply, err := svc.Submit(context.Background(), alice, 12345, library.Anx)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, reply.(Submission).Status)
}

func TestStatus(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	calSub, err := svc.Submit(ctx, alice, 10, library.Calibre)
	require.NoError(t, err)
	anxSub, err := svc.Submit(ctx, alice, 10, library.Anx)
	require.NoError(t, err)

	t.Run("owner sees anx task", func(t *testing.T) {
		reply, err := svc.Status(ctx, alice, anxSub.(Submission).TaskID)
		require.NoError(t, err)
		view, ok := reply.(TaskView)
		require.True(t, ok)
		assert.Equal(t, "pending", view.Status)
		assert.Equal(t, "anx", view.LibraryType)
		assert.NotEmpty(t, view.CreatedAt)
	})

	t.Run("other user cannot see anx task", func(t *testing.T) {
		reply, err := svc.Status(ctx, bob, anxSub.(Submission).TaskID)
		require.NoError(t, err)
		assert.Equal(t, ErrorReply{Error: "Task not found for this user."}, reply)
	})

	t.Run("calibre task is shared", func(t *testing.T) {
		reply, err := svc.Status(ctx, bob, calSub.(Submission).TaskID)
		require.NoError(t, err)
		assert.IsType(t, TaskView{}, reply)
	})

	t.Run("unknown task", func(t *testing.T) {
		reply, err := svc.Status(ctx, alice, "no-such-task")
		require.NoError(t, err)
		assert.Equal(t, ErrorReply{Error: "Task not found."}, reply)
	})
}

func TestLatestForBook(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	reply, err := svc.LatestForBook(ctx, alice, 10, "calibre")
	require.NoError(t, err)
	assert.Equal(t, NotFoundReply{Status: "not_found", Message: "No active or completed task found for this book."}, reply)

	sub, err := svc.Submit(ctx, alice, 10, library.Anx)
	require.NoError(t, err)

	reply, err = svc.LatestForBook(ctx, alice, 10, "anx")
	require.NoError(t, err)
	assert.Equal(t, sub.(Submission).TaskID, reply.(TaskView).TaskID)

	reply, err = svc.LatestForBook(ctx, bob, 10, "anx")
	require.NoError(t, err)
	assert.IsType(t, NotFoundReply{}, reply)
}
