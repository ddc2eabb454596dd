package app_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"

	"gousers/internal/users/adapters/security"
	"gousers/internal/users/app"
	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/internal/users/ports/api"
	"gousers/internal/users/ports/repositories"
)

var (
	errStoreDown = errors.New("store unavailable")
	testNow      = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
)

// memUsers - хранилище пользователей в памяти с журналом вызовов.
type memUsers struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]*entities.User
	memberships map[int64][]string
	calls       []string
	failures    map[string]error

	beforeUpdate func(u *memUsers, user *entities.User)
	beforeLock   func(u *memUsers, id int64)
}

func newMemUsers() *memUsers {
	return &memUsers{
		nextID:      100,
		users:       make(map[int64]*entities.User),
		memberships: make(map[int64][]string),
		failures:    make(map[string]error),
	}
}

func (m *memUsers) record(call string) error {
	m.calls = append(m.calls, call)
	return m.failures[strings.SplitN(call, ":", 2)[0]]
}

func (m *memUsers) put(user *entities.User, authorities ...string) *entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == 0 {
		m.nextID++
		user.ID = m.nextID
	}
	stored := cloneUser(user)
	stored.Authorities = nil
	m.users[user.ID] = stored
	m.memberships[user.ID] = append([]string(nil), authorities...)
	return user
}

func (m *memUsers) get(id int64) *entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil
	}
	out := cloneUser(user)
	out.Authorities = append([]string{}, m.memberships[id]...)
	return out
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memUsers) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *memUsers) findBy(match func(*entities.User) bool) (*entities.User, error) {
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if match(m.users[id]) {
			return cloneUser(m.users[id]), nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (m *memUsers) withAuthorities(user *entities.User, err error) (*entities.User, error) {
	if err != nil {
		return nil, err
	}
	user.Authorities = append([]string{}, m.memberships[user.ID]...)
	return user, nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindByID"); err != nil {
		return nil, err
	}
	return m.findBy(func(u *entities.User) bool { return u.ID == id })
}

func (m *memUsers) FindByLogin(_ context.Context, login string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindByLogin"); err != nil {
		return nil, err
	}
	return m.findBy(func(u *entities.User) bool { return u.Login == strings.ToLower(login) })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindByEmail"); err != nil {
		return nil, err
	}
	return m.findBy(func(u *entities.User) bool {
		return u.Email != "" && strings.EqualFold(u.Email, email)
	})
}

func (m *memUsers) FindByActivationKey(_ context.Context, key string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindByActivationKey"); err != nil {
		return nil, err
	}
	return m.findBy(func(u *entities.User) bool { return u.ActivationKey != nil && *u.ActivationKey == key })
}

func (m *memUsers) FindByResetKey(_ context.Context, key string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindByResetKey"); err != nil {
		return nil, err
	}
	return m.findBy(func(u *entities.User) bool { return u.ResetKey != nil && *u.ResetKey == key })
}

func (m *memUsers) FindWithAuthoritiesByLogin(_ context.Context, login string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindWithAuthoritiesByLogin"); err != nil {
		return nil, err
	}
	return m.withAuthorities(m.findBy(func(u *entities.User) bool { return u.Login == login }))
}

func (m *memUsers) FindWithAuthoritiesByID(_ context.Context, id int64) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindWithAuthoritiesByID"); err != nil {
		return nil, err
	}
	return m.withAuthorities(m.findBy(func(u *entities.User) bool { return u.ID == id }))
}

func (m *memUsers) FindWithAuthoritiesByEmail(_ context.Context, email string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindWithAuthoritiesByEmail"); err != nil {
		return nil, err
	}
	return m.withAuthorities(m.findBy(func(u *entities.User) bool { return strings.EqualFold(u.Email, email) }))
}

func (m *memUsers) FindAllByLoginNot(_ context.Context, page entities.Pageable, login string) ([]*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindAllByLoginNot:" + login); err != nil {
		return nil, err
	}

	var all []*entities.User
	for id, user := range m.users {
		if user.Login == login {
			continue
		}
		out := cloneUser(user)
		out.Authorities = append([]string{}, m.memberships[id]...)
		all = append(all, out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return all[start:end], nil
}

func (m *memUsers) CountByLoginNot(_ context.Context, login string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CountByLoginNot:" + login); err != nil {
		return 0, err
	}

	var count int64
	for _, user := range m.users {
		if user.Login != login {
			count++
		}
	}
	return count, nil
}

func (m *memUsers) FindNotActivatedBefore(_ context.Context, cutoff time.Time) ([]*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindNotActivatedBefore"); err != nil {
		return nil, err
	}

	var out []*entities.User
	for _, user := range m.users {
		if notActivated(user) && user.CreatedDate.Before(cutoff) {
			out = append(out, cloneUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) LockNotActivated(_ context.Context, id int64) (bool, error) {
	if m.beforeLock != nil {
		m.beforeLock(m, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("LockNotActivated:%d", id)); err != nil {
		return false, err
	}
	user, ok := m.users[id]
	return ok && notActivated(user), nil
}

func (m *memUsers) Create(_ context.Context, user *entities.User) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Create:" + user.Login); err != nil {
		return nil, err
	}
	if err := m.checkUnique(user); err != nil {
		return nil, err
	}

	m.nextID++
	created := cloneUser(user)
	created.ID = m.nextID
	stored := cloneUser(created)
	stored.Authorities = nil
	m.users[created.ID] = stored
	return created, nil
}

func (m *memUsers) Update(ctx context.Context, user *entities.User) (*entities.User, error) {
	return m.UpdateConsumingKey(ctx, user, repositories.KeyGuard{})
}

func (m *memUsers) UpdateConsumingKey(_ context.Context, user *entities.User, guard repositories.KeyGuard) (*entities.User, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(m, user)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("Update:%d", user.ID)); err != nil {
		return nil, err
	}
	current, ok := m.users[user.ID]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	if !keyMatches(guard.ActivationKey, current.ActivationKey) || !keyMatches(guard.ResetKey, current.ResetKey) {
		return nil, entities.ErrUserNotFound
	}
	if err := m.checkUnique(user); err != nil {
		return nil, err
	}

	stored := cloneUser(user)
	stored.Authorities = nil
	m.users[user.ID] = stored
	return cloneUser(user), nil
}

func keyMatches(expected string, stored *string) bool {
	return expected == "" || (stored != nil && *stored == expected)
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("Delete:%d", id)); err != nil {
		return err
	}
	if len(m.memberships[id]) > 0 {
		return fmt.Errorf("user %d still referenced by memberships", id)
	}
	delete(m.users, id)
	delete(m.memberships, id)
	return nil
}

func (m *memUsers) SaveUserAuthority(_ context.Context, userID int64, authority string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("SaveUserAuthority:%d:%s", userID, authority)); err != nil {
		return err
	}
	if !slices.Contains(m.memberships[userID], authority) {
		m.memberships[userID] = append(m.memberships[userID], authority)
	}
	return nil
}

func (m *memUsers) DeleteUserAuthority(_ context.Context, userID int64, authority string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("DeleteUserAuthority:%d:%s", userID, authority)); err != nil {
		return err
	}
	m.memberships[userID] = slices.DeleteFunc(m.memberships[userID], func(a string) bool { return a == authority })
	return nil
}

func (m *memUsers) DeleteUserAuthorities(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(fmt.Sprintf("DeleteUserAuthorities:%d", userID)); err != nil {
		return err
	}
	delete(m.memberships, userID)
	return nil
}

func (m *memUsers) checkUnique(user *entities.User) error {
	for id, other := range m.users {
		if id == user.ID {
			continue
		}
		if other.Login == user.Login {
			return services.ErrLoginAlreadyUsed
		}
		if user.Email != "" && strings.EqualFold(other.Email, user.Email) {
			return services.ErrEmailAlreadyUsed
		}
	}
	return nil
}

func notActivated(user *entities.User) bool {
	return !user.Activated && user.ActivationKey != nil
}

func cloneUser(user *entities.User) *entities.User {
	out := *user
	if user.ActivationKey != nil {
		key := *user.ActivationKey
		out.ActivationKey = &key
	}
	if user.ResetKey != nil {
		key := *user.ResetKey
		out.ResetKey = &key
	}
	if user.ResetDate != nil {
		date := *user.ResetDate
		out.ResetDate = &date
	}
	out.Authorities = append([]string(nil), user.Authorities...)
	return &out
}

// memAuthorities - фиксированный набор ролей.
type memAuthorities struct {
	names []string
	err   error
}

func (m *memAuthorities) FindByName(_ context.Context, name string) (*entities.Authority, error) {
	if m.err != nil {
		return nil, m.err
	}
	if !slices.Contains(m.names, name) {
		return nil, entities.ErrAuthorityNotFound
	}
	return &entities.Authority{Name: name}, nil
}

func (m *memAuthorities) FindAll(context.Context) ([]*entities.Authority, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*entities.Authority, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, &entities.Authority{Name: name})
	}
	return out, nil
}

// eventLog - общий журнал фиксаций транзакций и вытеснений из кэша.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, event)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

type fakeTxKey struct{}

type fakeTxScope struct {
	afterCommit []func(ctx context.Context)
}

// fakeTx выполняет fn без настоящей транзакции, считает вызовы и пишет
// в журнал фиксацию или откат внешней транзакции.
type fakeTx struct {
	mu     sync.Mutex
	count  int
	events *eventLog
}

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()

	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTxScope); ok {
		return fn(ctx)
	}

	scope := &fakeTxScope{}
	if err := fn(context.WithValue(ctx, fakeTxKey{}, scope)); err != nil {
		f.events.add("rollback")
		return err
	}
	f.events.add("commit")
	for _, hook := range scope.afterCommit {
		hook(ctx)
	}
	return nil
}

func (f *fakeTx) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if scope, ok := ctx.Value(fakeTxKey{}).(*fakeTxScope); ok {
		scope.afterCommit = append(scope.afterCommit, fn)
		return
	}
	fn(ctx)
}

// fakePasswords хэширует префиксом и соблюдает ограничения длины.
type fakePasswords struct{}

func (fakePasswords) Hash(_ context.Context, password string) (string, error) {
	if len(password) < services.MinPasswordLength || len(password) > services.MaxPasswordLength {
		return "", services.ErrInvalidPasswordLength
	}
	return "hash:" + password, nil
}

func (fakePasswords) Verify(_ context.Context, password, hash string) (bool, error) {
	return hash == "hash:"+password, nil
}

// seqKeys выдает предсказуемые ключи.
type seqKeys struct {
	mu sync.Mutex
	n  int
}

func (s *seqKeys) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

func (s *seqKeys) GenerateActivationKey() (string, error) { return s.next("activation"), nil }
func (s *seqKeys) GenerateResetKey() (string, error) { return s.next("reset"), nil }
func (s *seqKeys) GeneratePassword() (string, error) { return s.next("password"), nil }

// memCache - кэш пользователей в памяти с журналом вытеснений.
type memCache struct {
	mu      sync.Mutex
	users   map[string]*entities.User
	evicted []string
	events  *eventLog
}

func newMemCache(events *eventLog) *memCache {
	return &memCache{users: make(map[string]*entities.User), events: events}
}

func (c *memCache) GetByLogin(_ context.Context, login string) (*entities.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user, ok := c.users[login]; ok {
		return cloneUser(user), nil
	}
	return nil, nil
}

func (c *memCache) SetByLogin(_ context.Context, user *entities.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.Login] = cloneUser(user)
	return nil
}

func (c *memCache) Evict(_ context.Context, logins ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, login := range logins {
		delete(c.users, login)
		c.evicted = append(c.evicted, login)
		c.events.add("evict:" + login)
	}
	return nil
}

func (c *memCache) Close(context.Context) error { return nil }

// mockMetrics допускает любые вызовы и позволяет проверить их постфактум.
type mockMetrics struct {
	mock.Mock
}

func newMockMetrics() *mockMetrics {
	m := new(mockMetrics)
	for _, method := range []string{
		"UserRegistered", "UserCreated", "UserActivated", "PasswordResetRequested",
		"PasswordResetCompleted", "PasswordChanged", "UserDeleted",
	} {
		m.On(method).Maybe()
	}
	m.On("NotActivatedUsersRemoved", mock.Anything).Maybe()
	m.On("AuditEventsRemoved", mock.Anything).Maybe()
	return m
}

func (m *mockMetrics) UserRegistered() { m.Called() }
func (m *mockMetrics) UserCreated() { m.Called() }
func (m *mockMetrics) UserActivated() { m.Called() }
func (m *mockMetrics) PasswordResetRequested() { m.Called() }
func (m *mockMetrics) PasswordResetCompleted() { m.Called() }
func (m *mockMetrics) PasswordChanged() { m.Called() }
func (m *mockMetrics) UserDeleted() { m.Called() }
func (m *mockMetrics) NotActivatedUsersRemoved(n int) { m.Called(n) }
func (m *mockMetrics) AuditEventsRemoved(n int64) { m.Called(n) }

// fixture собирает сервис учетных записей поверх фейков.
type fixture struct {
	users       *memUsers
	authorities *memAuthorities
	tx          *fakeTx
	keys        *seqKeys
	cache       *memCache
	events      *eventLog
	metrics     *mockMetrics
	clock       *clockwork.FakeClock
	service     api.UserUseCase
}

func newFixture() *fixture {
	events := &eventLog{}
	f := &fixture{
		users:       newMemUsers(),
		authorities: &memAuthorities{names: []string{entities.RoleAdmin, entities.RoleUser}},
		tx:          &fakeTx{events: events},
		keys:        &seqKeys{},
		cache:       newMemCache(events),
		events:      events,
		metrics:     newMockMetrics(),
		clock:       clockwork.NewFakeClockAt(testNow),
	}
	f.service = f.build(f.users)
	return f
}

// build собирает сервис поверх users и остальных зависимостей fixture.
func (f *fixture) build(users repositories.UserRepository) api.UserUseCase {
	return app.NewUserUseCase(app.UserUseCaseDeps{
		Users:       users,
		Authorities: f.authorities,
		Transactor:  f.tx,
		Passwords:   fakePasswords{},
		Keys:        f.keys,
		Principal:   security.NewContextPrincipal(),
		Cache:       f.cache,
		Metrics:     f.metrics,
		Clock:       f.clock,
	})
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func asPrincipal(login string) context.Context {
	return security.WithPrincipal(context.Background(), login)
}

func activatedUser(login, email string) *entities.User {
	return &entities.User{
		Login:        login,
		Email:        email,
		PasswordHash: "hash:password",
		Activated:    true,
		LangKey:      "en",
		CreatedBy:    services.SystemAccount,
		CreatedDate:  testNow.Add(-30 * 24 * time.Hour),
	}
}

func pendingUser(login, email string, created time.Time) *entities.User {
	return &entities.User{
		Login:         login,
		Email:         email,
		PasswordHash:  "hash:password",
		Activated:     false,
		ActivationKey: strPtr("key-" + login),
		LangKey:       "en",
		CreatedBy:     services.SystemAccount,
		CreatedDate:   created,
	}
}
