package services

import (
	"fmt"
	"strings"
	"time"

	"emergencize-checkin-service/models"
	"emergencize-checkin-service/utils"
)

// ScoringPolicy 校验打分参数。
// 这些数值是策略调优项而非正确性不变式，保持可配置。
type ScoringPolicy struct {
	Base              float64 // 基础分
	LocationBonus     float64 // 位置命中加分
	SafeWordBonus     float64 // 安全词命中加分
	TimingWeight      float64 // 时间偏差分权重
	TrustedChannelBonus float64 // 可信渠道（app/穿戴设备）加分
	VerifiedThreshold float64 // 判定verified的分数阈值
}

// DefaultScoringPolicy 默认打分参数
var DefaultScoringPolicy = ScoringPolicy{
	Base:                0.5,
	LocationBonus:       0.3,
	SafeWordBonus:       0.4,
	TimingWeight:        0.2,
	TrustedChannelBonus: 0.1,
	VerifiedThreshold:   0.7,
}

// InterfaceVerificationService defines the verification scoring interface
type InterfaceVerificationService interface {
	Score(checkIn *models.CheckIn, schedule *models.CheckInSchedule, evidence *models.EvidencePayload,
		expectedLocation *models.GeoPoint, expectedSafeWord string) models.VerificationResult
}

// VerificationService 对提交的签到凭据进行确定性打分。
// 相同输入永远产生相同的分数和异常列表，没有隐藏状态。
type VerificationService struct {
	Policy ScoringPolicy
}

// NewVerificationService 创建校验打分服务
func NewVerificationService(policy ScoringPolicy) InterfaceVerificationService {
	return &VerificationService{Policy: policy}
}

// Score 计算置信分数与异常列表
func (s *VerificationService) Score(checkIn *models.CheckIn, schedule *models.CheckInSchedule, evidence *models.EvidencePayload,
	expectedLocation *models.GeoPoint, expectedSafeWord string) models.VerificationResult {

	score := s.Policy.Base
	method := "basic"
	var anomalies []string

	// 位置校验
	if schedule.RequireLocation {
		if evidence.Location == nil {
			anomalies = append(anomalies, "需要位置但未提供")
		} else if expectedLocation == nil {
			anomalies = append(anomalies, "需要位置但没有可参照的期望位置")
		} else {
			distance := utils.HaversineDistance(
				evidence.Location.Lat, evidence.Location.Lng,
				expectedLocation.Lat, expectedLocation.Lng)
			if distance <= schedule.LocationToleranceMeters {
				score += s.Policy.LocationBonus
				method = "location"
			} else {
				anomalies = append(anomalies, fmt.Sprintf("位置偏离期望点 %.0f 米，超出容差 %.0f 米",
					distance, schedule.LocationToleranceMeters))
			}
		}
	}

	// 安全词校验（大小写不敏感）
	if schedule.RequireSafeWord {
		if evidence.SafeWord == "" {
			anomalies = append(anomalies, "需要安全词但未提供")
		} else if expectedSafeWord != "" && strings.EqualFold(evidence.SafeWord, expectedSafeWord) {
			score += s.Policy.SafeWordBonus
			method = "safe_word"
		} else {
			anomalies = append(anomalies, "安全词不匹配")
		}
	}

	// 时间偏差分：距离计划时间越近分数越高
	actual := checkIn.ScheduledTime
	if checkIn.SubmittedAt != nil {
		actual = *checkIn.SubmittedAt
	}
	score += timingScore(checkIn.ScheduledTime, actual) * s.Policy.TimingWeight

	// 可信渠道加分
	if checkIn.Response.Channel == models.ChannelApp || checkIn.Response.Channel == models.ChannelWearable {
		score += s.Policy.TrustedChannelBonus
	}

	// 钳制到[0,1]
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return models.VerificationResult{
		Verified:  score >= s.Policy.VerifiedThreshold && len(anomalies) == 0,
		Method:    method,
		Score:     score,
		Anomalies: anomalies,
	}
}

// timingScore 时间偏差的阶梯函数
func timingScore(scheduled, actual time.Time) float64 {
	diff := actual.Sub(scheduled)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= 5*time.Minute:
		return 1.0
	case diff <= 15*time.Minute:
		return 0.8
	case diff <= 30*time.Minute:
		return 0.6
	case diff <= 60*time.Minute:
		return 0.4
	default:
		return 0.2
	}
}
