package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"emergencize-checkin-service/models"
)

func scoringFixture(t *testing.T) (*models.CheckIn, *models.CheckInSchedule) {
	t.Helper()
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	submitted := scheduled.Add(2 * time.Minute)
	checkIn := &models.CheckIn{
		ID:            1,
		ScheduleID:    1,
		UserID:        1,
		Status:        models.CheckInStatusPending,
		ScheduledTime: scheduled,
		SubmittedAt:   &submitted,
		Response:      models.ResponseMeta{Channel: models.ChannelApp},
	}
	schedule := dailySchedule()
	schedule.LocationToleranceMeters = 100
	return checkIn, schedule
}

func TestScoreBasicOnTime(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)

	result := svc.Score(checkIn, schedule, &models.EvidencePayload{}, nil, "")

	// 0.5基础 + 1.0*0.2时间分 + 0.1可信渠道 = 0.8
	assert.InDelta(t, 0.8, result.Score, 0.001)
	assert.True(t, result.Verified)
	assert.Empty(t, result.Anomalies)
	assert.Equal(t, "basic", result.Method)
}

func TestScoreLocationMatch(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireLocation = true

	expected := &models.GeoPoint{Lat: 39.9042, Lng: 116.4074}
	evidence := &models.EvidencePayload{Location: &models.GeoPoint{Lat: 39.9042, Lng: 116.4074}}

	result := svc.Score(checkIn, schedule, evidence, expected, "")

	assert.True(t, result.Verified)
	assert.Equal(t, "location", result.Method)
	assert.Empty(t, result.Anomalies)
	// 0.5 + 0.3位置 + 0.2时间 + 0.1渠道 = 1.1 → 钳制到1
	assert.InDelta(t, 1.0, result.Score, 0.001)
}

func TestScoreLocationOutOfTolerance(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireLocation = true

	// 约1.1公里之外
	expected := &models.GeoPoint{Lat: 39.9042, Lng: 116.4074}
	evidence := &models.EvidencePayload{Location: &models.GeoPoint{Lat: 39.914, Lng: 116.4074}}

	result := svc.Score(checkIn, schedule, evidence, expected, "")

	assert.False(t, result.Verified)
	assert.Len(t, result.Anomalies, 1)
}

func TestScoreLocationMissing(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireLocation = true

	result := svc.Score(checkIn, schedule, &models.EvidencePayload{}, nil, "")

	assert.False(t, result.Verified)
	assert.NotEmpty(t, result.Anomalies)
}

func TestScoreSafeWordCaseInsensitive(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireSafeWord = true

	result := svc.Score(checkIn, schedule, &models.EvidencePayload{SafeWord: "RainBow"}, nil, "rainbow")

	assert.True(t, result.Verified)
	assert.Equal(t, "safe_word", result.Method)
	assert.Empty(t, result.Anomalies)
}

func TestScoreSafeWordMismatch(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireSafeWord = true

	result := svc.Score(checkIn, schedule, &models.EvidencePayload{SafeWord: "wrong"}, nil, "rainbow")

	assert.False(t, result.Verified)
	assert.Contains(t, result.Anomalies, "安全词不匹配")
}

func TestScoreTimingTiers(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)

	cases := []struct {
		offset time.Duration
		tier   float64
	}{
		{3 * time.Minute, 1.0},
		{10 * time.Minute, 0.8},
		{25 * time.Minute, 0.6},
		{50 * time.Minute, 0.4},
		{2 * time.Hour, 0.2},
	}
	for _, tc := range cases {
		checkIn, schedule := scoringFixture(t)
		submitted := checkIn.ScheduledTime.Add(tc.offset)
		checkIn.SubmittedAt = &submitted
		checkIn.Response.Channel = models.ChannelManual // 去掉渠道加分，隔离时间分

		result := svc.Score(checkIn, schedule, &models.EvidencePayload{}, nil, "")
		assert.InDelta(t, 0.5+tc.tier*0.2, result.Score, 0.001, "offset=%v", tc.offset)
	}
}

func TestScoreDeterministic(t *testing.T) {
	svc := NewVerificationService(DefaultScoringPolicy)
	checkIn, schedule := scoringFixture(t)
	schedule.RequireSafeWord = true
	evidence := &models.EvidencePayload{SafeWord: "rainbow"}

	first := svc.Score(checkIn, schedule, evidence, nil, "rainbow")
	second := svc.Score(checkIn, schedule, evidence, nil, "rainbow")
	assert.Equal(t, first, second)
}
