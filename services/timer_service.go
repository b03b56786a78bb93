package services

import (
	"sync"
	"time"

	"emergencize-checkin-service/config"
)

// TimerHandle 一次性定时器的取消句柄
type TimerHandle interface {
	// Stop 尽力取消定时器；已触发或已取消时返回false
	Stop() bool
}

// InterfaceTimerService 时钟与定时器抽象，注入以便测试可控
type InterfaceTimerService interface {
	Now() time.Time
	After(d time.Duration, fn func()) TimerHandle
}

// RealTimerService 基于标准库time的实现
type RealTimerService struct{}

// NewRealTimerService 创建真实时钟服务
func NewRealTimerService() *RealTimerService {
	return &RealTimerService{}
}

// Now 返回当前时间
func (s *RealTimerService) Now() time.Time {
	return time.Now()
}

// After d之后在独立goroutine中执行fn
func (s *RealTimerService) After(d time.Duration, fn func()) TimerHandle {
	t := time.AfterFunc(d, fn)
	return &realHandle{timer: t}
}

type realHandle struct {
	timer *time.Timer
}

func (h *realHandle) Stop() bool {
	return h.timer.Stop()
}

// TimerKind 定时器用途
type TimerKind int

const (
	// TimerEscalationDeadline 签到错过判定定时器（实体为CheckIn）
	TimerEscalationDeadline TimerKind = iota
	// TimerReminder 签到提醒定时器（实体为CheckIn，Seq为提前分钟数）
	TimerReminder
	// TimerLevelAdvance 升级层级推进定时器（实体为EscalationEvent）
	TimerLevelAdvance
)

// TimerKey 按实体维度索引定时器句柄
type TimerKey struct {
	Kind     TimerKind
	EntityID uint
	Seq      int
}

// TimerRegistry 持有所有已布防的定时器句柄。
// 取消只是尽力而为：已经触发的回调必须先校验持久化状态再动作。
type TimerRegistry struct {
	clock   InterfaceTimerService
	mu      sync.Mutex
	handles map[TimerKey]TimerHandle
}

// NewTimerRegistry 创建定时器句柄表
func NewTimerRegistry(clock InterfaceTimerService) *TimerRegistry {
	return &TimerRegistry{
		clock:   clock,
		handles: make(map[TimerKey]TimerHandle),
	}
}

// Arm 布防一个定时器，同键的旧定时器会先被取消
func (r *TimerRegistry) Arm(key TimerKey, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.handles[key]; ok {
		old.Stop()
	}

	r.handles[key] = r.clock.After(d, func() {
		// 触发后先摘除句柄，避免句柄表无界增长
		r.mu.Lock()
		delete(r.handles, key)
		r.mu.Unlock()
		fn()
	})
}

// Cancel 取消单个定时器，返回是否在触发前取消成功
func (r *TimerRegistry) Cancel(key TimerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.handles[key]
	if !ok {
		return false
	}
	delete(r.handles, key)

	stopped := handle.Stop()
	if !stopped {
		// 竞态：定时器已经触发，回调侧会按状态判断是否动作
		config.Warning("定时器取消竞态: kind=%d entity=%d seq=%d", key.Kind, key.EntityID, key.Seq)
	}
	return stopped
}

// CancelEntity 取消某实体的全部定时器（所有Seq）
func (r *TimerRegistry) CancelEntity(kind TimerKind, entityID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, handle := range r.handles {
		if key.Kind == kind && key.EntityID == entityID {
			handle.Stop()
			delete(r.handles, key)
		}
	}
}

// CancelAll 取消全部定时器（停止监控时使用）
func (r *TimerRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, handle := range r.handles {
		handle.Stop()
		delete(r.handles, key)
	}
}

// Count 当前布防的定时器数量
func (r *TimerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// KeyedMutex 按实体键序列化并发回调；不同实体完全并行
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex 创建实体级互斥表
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock 锁定实体键，返回解锁函数
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
