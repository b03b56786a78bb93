package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"emergencize-checkin-service/models"
)

// fakeClock 可控时钟：Advance按触发时间顺序同步执行到期回调，
// 让定时器相关的测试完全确定。
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	fireAt  time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fireAt: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进时钟并触发所有到期的定时器。
// 回调里布防的新定时器若也已到期会在同一次Advance中触发。
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.fired && !t.stopped && !t.fireAt.After(c.now) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
		for _, t := range due {
			t.fired = true
		}
		c.mu.Unlock()

		for _, t := range due {
			t.fn()
		}
	}
}

// memStore 内存存储，供所有测试共享
type memStore struct {
	mu          sync.Mutex
	schedules   map[uint]*models.CheckInSchedule
	checkIns    map[uint]*models.CheckIn
	escalations map[uint]*models.EscalationEvent
	contacts    map[uint]*models.EmergencyContact
	users       map[uint]*models.AppUser
	nextID      uint
}

func newMemStore() *memStore {
	return &memStore{
		schedules:   make(map[uint]*models.CheckInSchedule),
		checkIns:    make(map[uint]*models.CheckIn),
		escalations: make(map[uint]*models.EscalationEvent),
		contacts:    make(map[uint]*models.EmergencyContact),
		users:       make(map[uint]*models.AppUser),
	}
}

func (m *memStore) nextIDLocked() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetSchedule(id uint) (*models.CheckInSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memStore) PutSchedule(schedule *models.CheckInSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if schedule.ID == 0 {
		schedule.ID = m.nextIDLocked()
	}
	copied := *schedule
	m.schedules[schedule.ID] = &copied
	return nil
}

func (m *memStore) DeleteSchedule(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) ListSchedulesByUser(userID uint) ([]models.CheckInSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CheckInSchedule
	for _, s := range m.schedules {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveSchedules() ([]models.CheckInSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CheckInSchedule
	for _, s := range m.schedules {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) GetCheckIn(id uint) (*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkIns[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) PutCheckIn(checkIn *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if checkIn.ID == 0 {
		checkIn.ID = m.nextIDLocked()
	}
	copied := *checkIn
	m.checkIns[checkIn.ID] = &copied
	return nil
}

func (m *memStore) sortedCheckIns(match func(*models.CheckIn) bool) []models.CheckIn {
	var out []models.CheckIn
	for _, c := range m.checkIns {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListCheckInsByUser(userID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedCheckIns(func(c *models.CheckIn) bool { return c.UserID == userID })
	return paginate(all, page, pageSize), int64(len(all)), nil
}

func (m *memStore) ListCheckInsBySchedule(scheduleID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedCheckIns(func(c *models.CheckIn) bool { return c.ScheduleID == scheduleID })
	return paginate(all, page, pageSize), int64(len(all)), nil
}

func (m *memStore) ListAllCheckInsByUser(userID uint) ([]models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedCheckIns(func(c *models.CheckIn) bool { return c.UserID == userID }), nil
}

func (m *memStore) FindPendingBySchedule(scheduleID uint) (*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkIns {
		if c.ScheduleID == scheduleID && c.Status == models.CheckInStatusPending {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListPendingDue(before time.Time) ([]models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedCheckIns(func(c *models.CheckIn) bool {
		return c.Status == models.CheckInStatusPending && c.ScheduledTime.Before(before)
	}), nil
}

func (m *memStore) PruneHistory(scheduleID uint, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resolved := m.sortedCheckIns(func(c *models.CheckIn) bool {
		return c.ScheduleID == scheduleID && c.Status.Resolved()
	})
	if len(resolved) <= keep {
		return nil
	}
	for _, c := range resolved[:len(resolved)-keep] {
		delete(m.checkIns, c.ID)
	}
	return nil
}

func (m *memStore) GetEscalation(id uint) (*models.EscalationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *memStore) PutEscalation(event *models.EscalationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == 0 {
		event.ID = m.nextIDLocked()
	}
	copied := *event
	m.escalations[event.ID] = &copied
	return nil
}

func (m *memStore) ListEscalationsByUser(userID uint) ([]models.EscalationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EscalationEvent
	for _, e := range m.escalations {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListEscalationsBySchedule(scheduleID uint) ([]models.EscalationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EscalationEvent
	for _, e := range m.escalations {
		if e.ScheduleID == scheduleID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindActiveByCheckIn(checkInID uint) (*models.EscalationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.escalations {
		if e.CheckInID == checkInID && e.Status == models.EscalationStatusActive {
			copied := *e
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetContact(id uint) (*models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) PutContact(contact *models.EmergencyContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contact.ID == 0 {
		contact.ID = m.nextIDLocked()
	}
	copied := *contact
	m.contacts[contact.ID] = &copied
	return nil
}

func (m *memStore) DeleteContact(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(m.contacts, id)
	return nil
}

func (m *memStore) ListContactsByUser(userID uint) ([]models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EmergencyContact
	for _, c := range m.contacts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) GetUser(id uint) (*models.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) FindUserByPhone(phone string) (*models.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) PutUser(user *models.AppUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.nextIDLocked()
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStore) DeleteUser(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(page, pageSize int) ([]models.AppUser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AppUser
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page, pageSize), int64(len(out)), nil
}

func paginate[T any](all []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// sentCall 记录一次通知投递
type sentCall struct {
	Action  models.ActionType
	Target  NotifyTarget
	Message string
}

// fakeNotifier 记录所有投递，可配置失败
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCall
	fail bool
}

func (n *fakeNotifier) Connect() error { return nil }

func (n *fakeNotifier) Send(action models.ActionType, target NotifyTarget, message string) DispatchResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCall{Action: action, Target: target, Message: message})
	if n.fail {
		return DispatchResult{Success: false, Error: "模拟投递失败"}
	}
	return DispatchResult{Success: true, Response: "ok"}
}

func (n *fakeNotifier) calls() []sentCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentCall, len(n.sent))
	copy(out, n.sent)
	return out
}

// fakeLimiter 总是放行或总是拒绝
type fakeLimiter struct {
	deny bool
}

func (l *fakeLimiter) Allow(userID uint, operation string) bool { return !l.deny }

// fakeGeo 固定的期望位置
type fakeGeo struct {
	point *models.GeoPoint
}

func (g *fakeGeo) CurrentExpectedLocation(userID uint) (*models.GeoPoint, error) {
	return g.point, nil
}

// fakeSecrets 固定的安全词
type fakeSecrets struct {
	word string
}

func (s *fakeSecrets) ExpectedSafeWord(userID uint) (string, error) {
	return s.word, nil
}

// seqIDGen 递增的事件ID生成器
type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("evt-%06d", g.n)
}
