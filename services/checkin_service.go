package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
)

// ErrAlreadyResolved 向非pending签到提交
var ErrAlreadyResolved = errors.New("签到已完成或已错过")

// MissingFieldsError 缺少计划要求的签到凭据
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "缺少必填的签到凭据: " + strings.Join(e.Fields, ", ")
}

// InterfaceCheckInService defines the check-in lifecycle interface
type InterfaceCheckInService interface {
	// EnsurePending 返回计划当前的pending签到，没有则按给定时间创建
	EnsurePending(schedule *models.CheckInSchedule, scheduledAt time.Time) (*models.CheckIn, bool, error)
	Submit(checkInID uint, evidence models.EvidencePayload, meta models.ResponseMeta) (*models.CheckIn, error)
	GetCheckIn(id uint) (*models.CheckIn, error)
	ListCheckInsByUser(userID uint, page, pageSize int) ([]models.CheckIn, int64, error)
	ListCheckInsBySchedule(scheduleID uint, page, pageSize int) ([]models.CheckIn, int64, error)
}

// CheckInService 管理签到实例的状态机。
// pending → completed/late 由提交路径驱动；pending → missed 由升级控制器驱动。
type CheckInService struct {
	Schedules InterfaceScheduleStore
	CheckIns  InterfaceCheckInStore
	Verifier  InterfaceVerificationService
	Geo       InterfaceGeofencingService
	Secrets   InterfaceSecretService
	Clock     InterfaceTimerService
	Locks     *KeyedMutex
}

// NewCheckInService 创建签到生命周期管理器
func NewCheckInService(schedules InterfaceScheduleStore, checkIns InterfaceCheckInStore,
	verifier InterfaceVerificationService, geo InterfaceGeofencingService,
	secrets InterfaceSecretService, clock InterfaceTimerService, locks *KeyedMutex) InterfaceCheckInService {
	return &CheckInService{
		Schedules: schedules,
		CheckIns:  checkIns,
		Verifier:  verifier,
		Geo:       geo,
		Secrets:   secrets,
		Clock:     clock,
		Locks:     locks,
	}
}

// EnsurePending 保证计划有且只有一个pending签到。
// 已存在时返回现有实例，第二个返回值表示是否新建。
func (s *CheckInService) EnsurePending(schedule *models.CheckInSchedule, scheduledAt time.Time) (*models.CheckIn, bool, error) {
	unlock := s.Locks.Lock(fmt.Sprintf("schedule:%d", schedule.ID))
	defer unlock()

	existing, err := s.CheckIns.FindPendingBySchedule(schedule.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	checkIn := &models.CheckIn{
		ScheduleID:    schedule.ID,
		UserID:        schedule.UserID,
		Status:        models.CheckInStatusPending,
		ScheduledTime: scheduledAt,
		CreatedAt:     s.Clock.Now(),
	}
	if err := s.CheckIns.PutCheckIn(checkIn); err != nil {
		return nil, false, err
	}
	return checkIn, true, nil
}

// Submit 接受一次签到提交。
// 校验凭据、运行打分、按时间判定completed/late并落库。
// 定时器取消与升级事件解除由编排层完成。
func (s *CheckInService) Submit(checkInID uint, evidence models.EvidencePayload, meta models.ResponseMeta) (*models.CheckIn, error) {
	unlock := s.Locks.Lock(fmt.Sprintf("checkin:%d", checkInID))
	defer unlock()

	checkIn, err := s.CheckIns.GetCheckIn(checkInID)
	if err != nil {
		return nil, err
	}
	if checkIn.Status.Resolved() {
		return nil, ErrAlreadyResolved
	}

	schedule, err := s.Schedules.GetSchedule(checkIn.ScheduleID)
	if err != nil {
		return nil, err
	}

	// 校验必填凭据
	if missing := requiredFieldsMissing(schedule, &evidence); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	now := s.Clock.Now()
	checkIn.SubmittedAt = &now
	checkIn.Evidence = evidence
	checkIn.Response = meta

	// 按提交时间判定状态；打分结果只附加，不影响completed/late判定
	status, ok := resolveStatus(schedule, checkIn.ScheduledTime, now)
	if !ok {
		return nil, ErrAlreadyResolved
	}
	checkIn.Status = status
	checkIn.CompletedAt = &now

	// 获取参照信号并打分。参照信号不可用不阻塞提交，只记录。
	var expectedLocation *models.GeoPoint
	if schedule.RequireLocation {
		expectedLocation, err = s.Geo.CurrentExpectedLocation(checkIn.UserID)
		if err != nil {
			config.Warning("获取期望位置失败: user=%d, err=%v", checkIn.UserID, err)
		}
	}
	var expectedSafeWord string
	if schedule.RequireSafeWord {
		expectedSafeWord, err = s.Secrets.ExpectedSafeWord(checkIn.UserID)
		if err != nil {
			config.Warning("获取安全词失败: user=%d, err=%v", checkIn.UserID, err)
		}
	}

	result := s.Verifier.Score(checkIn, schedule, &evidence, expectedLocation, expectedSafeWord)
	checkIn.Verification = &result

	if err := s.CheckIns.PutCheckIn(checkIn); err != nil {
		return nil, err
	}
	return checkIn, nil
}

// GetCheckIn 根据ID获取签到
func (s *CheckInService) GetCheckIn(id uint) (*models.CheckIn, error) {
	return s.CheckIns.GetCheckIn(id)
}

// ListCheckInsByUser 分页获取用户签到历史
func (s *CheckInService) ListCheckInsByUser(userID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	return s.CheckIns.ListCheckInsByUser(userID, page, pageSize)
}

// ListCheckInsBySchedule 分页获取计划签到历史
func (s *CheckInService) ListCheckInsBySchedule(scheduleID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	return s.CheckIns.ListCheckInsBySchedule(scheduleID, page, pageSize)
}

// requiredFieldsMissing 对照计划的凭据要求检查提交内容
func requiredFieldsMissing(schedule *models.CheckInSchedule, evidence *models.EvidencePayload) []string {
	var missing []string
	if schedule.RequireLocation && evidence.Location == nil {
		missing = append(missing, "location")
	}
	if schedule.RequirePhoto && evidence.PhotoRef == "" {
		missing = append(missing, "photo_ref")
	}
	if schedule.RequireMessage && evidence.Message == "" {
		missing = append(missing, "message")
	}
	if schedule.RequireVitals && len(evidence.Vitals) == 0 {
		missing = append(missing, "vitals")
	}
	if schedule.RequireSafeWord && evidence.SafeWord == "" {
		missing = append(missing, "safe_word")
	}
	return missing
}

// resolveStatus 按提交时刻判定终态。
// 宽限期内算completed；之后在允许的迟到范围内算late；再晚则拒绝。
func resolveStatus(schedule *models.CheckInSchedule, scheduledTime, submittedAt time.Time) (models.CheckInStatus, bool) {
	grace := time.Duration(schedule.GracePeriodMinutes) * time.Minute
	if !submittedAt.After(scheduledTime.Add(grace)) {
		return models.CheckInStatusCompleted, true
	}
	if !schedule.AllowLateCheckIn {
		return "", false
	}
	if schedule.MaxLateMinutes > 0 {
		lateness := submittedAt.Sub(scheduledTime)
		if lateness > time.Duration(schedule.MaxLateMinutes)*time.Minute {
			return "", false
		}
	}
	return models.CheckInStatusLate, true
}
