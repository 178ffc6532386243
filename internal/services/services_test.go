package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todoapi/apiserver/internal/db/dbtest"
	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

func strPtr(s string) *string { return &s }

type publishedMessage struct {
	channel string
	event   types.Event
	attrs   map[string]string
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.messages = append(p.messages, publishedMessage{channel: channel, event: event, attrs: attrs})
	return event.ID, nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, msg := range p.messages {
		out = append(out, msg.event.Type)
	}
	return out
}

type fixture struct {
	userRepo  *store.UserRepository
	todoRepo  *store.TodoRepository
	users     *UserService
	todos     *TodoService
	publisher *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	userRepo := store.NewUserRepository(gdb)
	todoRepo := store.NewTodoRepository(gdb)
	publisher := &recordingPublisher{}
	return fixture{
		userRepo:  userRepo,
		todoRepo:  todoRepo,
		users:     NewUserService(userRepo, publisher),
		todos:     NewTodoService(todoRepo, userRepo, publisher),
		publisher: publisher,
	}
}

func TestScenarioCreateGetCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{ID: 77, FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	assert.Equal(t, types.UserDTO{ID: 1, FirstName: "A", LastName: "B", Todo: []types.UserTodoDTO{}}, user)

	created, err := f.todos.Create(ctx, types.TodoItemDTO{ID: 9, UserID: 1, Name: strPtr("x")})
	require.NoError(t, err)
	want := types.TodoItemDTO{ID: 1, UserID: 1, Name: strPtr("x"), IsComplete: false}
	assert.Equal(t, want, created)

	fetched, err := f.todos.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	withTodos, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.UserTodoDTO{{ID: 1, Name: strPtr("x")}}, withTodos.Todo)

	require.NoError(t, f.users.Delete(ctx, user.ID))

	_, err = f.todos.Get(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, []string{
		types.EventUserCreated,
		types.EventTodoItemCreated,
		types.EventUserDeleted,
	}, f.publisher.eventTypes())
}

func TestTodoCreateRequiresExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, userID := range []int64{0, 1, 42, -3} {
		_, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: userID, Name: strPtr("x")})
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	items, err := f.todos.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.publisher.eventTypes())
}

// staleChecker claims every user exists, so the insert hits the foreign key.
type staleChecker struct{}

func (staleChecker) Exists(context.Context, int64) (bool, error) { return true, nil }

func TestTodoCreateUserDeletedBeforeInsert(t *testing.T) {
	f := newFixture(t)
	todos := NewTodoService(f.todoRepo, staleChecker{}, nil)

	_, err := todos.Create(context.Background(), types.TodoItemDTO{UserID: 5})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTodoReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	created, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID, Name: strPtr("x")})
	require.NoError(t, err)

	other, err := f.users.Create(ctx, types.UserDTO{FirstName: "Other"})
	require.NoError(t, err)

	err = f.todos.Replace(ctx, created.ID, types.TodoItemDTO{
		ID:         created.ID,
		UserID:     other.ID,
		Name:       strPtr("renamed"),
		IsComplete: true,
	})
	require.NoError(t, err)

	fetched, err := f.todos.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TodoItemDTO{ID: created.ID, UserID: user.ID, Name: strPtr("renamed"), IsComplete: true}, fetched)
	assert.Contains(t, f.publisher.eventTypes(), types.EventTodoItemUpdated)
}

func TestTodoReplaceIDMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	created, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, f.todos.Replace(ctx, created.ID, types.TodoItemDTO{ID: created.ID + 1}), ErrIDMismatch)
	assert.ErrorIs(t, f.todos.Replace(ctx, 500, types.TodoItemDTO{ID: 501}), ErrIDMismatch)
}

func TestTodoReplaceMissing(t *testing.T) {
	f := newFixture(t)

	err := f.todos.Replace(context.Background(), 3, types.TodoItemDTO{ID: 3})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// racingTodoRepo runs hook between the read and the versioned write.
type racingTodoRepo struct {
	*store.TodoRepository
	hook func(ctx context.Context, item types.TodoItem)
}

func (r racingTodoRepo) Update(ctx context.Context, item types.TodoItem) (types.TodoItem, error) {
	r.hook(ctx, item)
	return r.TodoRepository.Update(ctx, item)
}

func TestTodoReplaceConcurrentDeleteIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	created, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID})
	require.NoError(t, err)

	repo := racingTodoRepo{TodoRepository: f.todoRepo, hook: func(ctx context.Context, item types.TodoItem) {
		require.NoError(t, f.todoRepo.Delete(ctx, item.ID))
	}}
	todos := NewTodoService(repo, f.userRepo, nil)

	err = todos.Replace(ctx, created.ID, types.TodoItemDTO{ID: created.ID, IsComplete: true})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTodoReplaceConcurrentUpdateIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	created, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID})
	require.NoError(t, err)

	repo := racingTodoRepo{TodoRepository: f.todoRepo, hook: func(ctx context.Context, item types.TodoItem) {
		_, err := f.todoRepo.Update(ctx, item)
		require.NoError(t, err)
	}}
	todos := NewTodoService(repo, f.userRepo, nil)

	err = todos.Replace(ctx, created.ID, types.TodoItemDTO{ID: created.ID, IsComplete: true})
	assert.ErrorIs(t, err, store.ErrConflict)
}

// racingUserRepo runs hook between the read and the versioned write.
type racingUserRepo struct {
	*store.UserRepository
	hook func(ctx context.Context, user types.User)
}

func (r racingUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.hook(ctx, user)
	return r.UserRepository.Update(ctx, user)
}

func TestUserReplaceConcurrentDeleteIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.users.Create(ctx, types.UserDTO{FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	repo := racingUserRepo{UserRepository: f.userRepo, hook: func(ctx context.Context, user types.User) {
		require.NoError(t, f.userRepo.Delete(ctx, user.ID))
	}}
	users := NewUserService(repo, nil)

	err = users.Replace(ctx, created.ID, types.UserDTO{ID: created.ID, LastName: "C"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserReplaceConcurrentUpdateIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.users.Create(ctx, types.UserDTO{FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	repo := racingUserRepo{UserRepository: f.userRepo, hook: func(ctx context.Context, user types.User) {
		user.LastName = "D"
		_, err := f.userRepo.Update(ctx, user)
		require.NoError(t, err)
	}}
	users := NewUserService(repo, nil)

	err = users.Replace(ctx, created.ID, types.UserDTO{ID: created.ID, LastName: "C"})
	assert.ErrorIs(t, err, store.ErrConflict)

	fetched, err := f.users.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "D", fetched.LastName)
}

func TestTodoDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	created, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID})
	require.NoError(t, err)

	require.NoError(t, f.todos.Delete(ctx, created.ID))
	assert.ErrorIs(t, f.todos.Delete(ctx, created.ID), store.ErrNotFound)

	user, err = f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, user.Todo)
}

func TestUserReplaceOnlyChangesLastName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.users.Create(ctx, types.UserDTO{FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	err = f.users.Replace(ctx, created.ID, types.UserDTO{ID: created.ID, FirstName: "Z", LastName: "C"})
	require.NoError(t, err)

	fetched, err := f.users.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", fetched.FirstName)
	assert.Equal(t, "C", fetched.LastName)

	assert.ErrorIs(t, f.users.Replace(ctx, created.ID, types.UserDTO{ID: 2}), ErrIDMismatch)
	assert.ErrorIs(t, f.users.Replace(ctx, 9, types.UserDTO{ID: 9}), store.ErrNotFound)
}

func TestUserDeleteUsesRequestedID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.users.Create(ctx, types.UserDTO{FirstName: "first"})
	require.NoError(t, err)
	second, err := f.users.Create(ctx, types.UserDTO{FirstName: "second"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.users.Delete(ctx, 404), store.ErrNotFound)

	require.NoError(t, f.users.Delete(ctx, second.ID))

	list, err := f.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestUserDeleteCascadesToTodos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	owner, err := f.users.Create(ctx, types.UserDTO{FirstName: "owner"})
	require.NoError(t, err)
	other, err := f.users.Create(ctx, types.UserDTO{FirstName: "other"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.todos.Create(ctx, types.TodoItemDTO{UserID: owner.ID})
		require.NoError(t, err)
	}
	_, err = f.todos.Create(ctx, types.TodoItemDTO{UserID: other.ID})
	require.NoError(t, err)

	before, err := f.todos.List(ctx)
	require.NoError(t, err)
	require.Len(t, before, 4)

	require.NoError(t, f.users.Delete(ctx, owner.ID))

	after, err := f.todos.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	for _, item := range after {
		assert.NotEqual(t, owner.ID, item.UserID)
	}
}

func TestEventsCarryDTOs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	_, err = f.todos.Create(ctx, types.TodoItemDTO{UserID: user.ID, Name: strPtr("x")})
	require.NoError(t, err)

	require.Len(t, f.publisher.messages, 2)

	userMsg := f.publisher.messages[0]
	assert.Equal(t, types.ChannelUsers, userMsg.channel)
	assert.Equal(t, user.ID, userMsg.event.EntityID)
	assert.NotEmpty(t, userMsg.event.ID)
	assert.Equal(t, userMsg.event.ID, userMsg.attrs["event_id"])
	assert.Equal(t, types.EventUserCreated, userMsg.attrs["type"])
	assert.JSONEq(t, `{"id":1,"firstName":"A","lastName":"B","todo":[]}`, string(userMsg.event.Data))

	todoMsg := f.publisher.messages[1]
	assert.Equal(t, types.ChannelTodoItems, todoMsg.channel)
	assert.JSONEq(t, `{"id":1,"userId":1,"name":"x","isComplete":false}`, string(todoMsg.event.Data))
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	created, err := f.users.Create(context.Background(), types.UserDTO{FirstName: "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
}

type memoryStore struct {
	bucket      string
	ensured     bool
	objects     map[string][]byte
	contentType string
	ensureErr   error
}

func (m *memoryStore) EnsureBucket(context.Context) error {
	m.ensured = true
	return m.ensureErr
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	m.contentType = contentType
	return nil
}

func (m *memoryStore) Bucket() string { return m.bucket }

func TestExportWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, types.UserDTO{FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	_, err = f.todoRepo.Create(ctx, types.TodoItem{UserID: user.ID, Name: strPtr("x"), Secret: strPtr("classified")})
	require.NoError(t, err)

	objects := &memoryStore{bucket: "snapshots"}
	exporter := NewExportService(f.users, objects)
	exporter.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	key, err := exporter.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "exports/users-20260304T050607Z.json", key)
	assert.True(t, objects.ensured)
	assert.Equal(t, "application/json", objects.contentType)

	data := objects.objects[key]
	require.NotEmpty(t, data)
	assert.False(t, bytes.Contains(data, []byte("classified")))

	var snapshot types.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.True(t, snapshot.ExportedAt.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)))
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, []types.UserTodoDTO{{ID: 1, Name: strPtr("x")}}, snapshot.Users[0].Todo)
}

func TestExportCustomKeyAndBucketFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	objects := &memoryStore{bucket: "snapshots"}
	key, err := NewExportService(f.users, objects).Export(ctx, "  nightly.json ")
	require.NoError(t, err)
	assert.Equal(t, "nightly.json", key)
	var snapshot types.Snapshot
	require.NoError(t, json.Unmarshal(objects.objects[key], &snapshot))
	assert.NotNil(t, snapshot.Users)
	assert.Empty(t, snapshot.Users)

	failing := &memoryStore{bucket: "snapshots", ensureErr: errors.New("denied")}
	_, err = NewExportService(f.users, failing).Export(ctx, "")
	assert.ErrorContains(t, err, "ensure bucket snapshots")
	assert.Empty(t, failing.objects)
}
