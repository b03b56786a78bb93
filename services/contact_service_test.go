package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergencize-checkin-service/models"
)

func TestCreateContactDuplicatePhone(t *testing.T) {
	store := newMemStore()
	svc := NewContactService(store, store)

	owner := &models.AppUser{Name: "王芳", Phone: "13800138000"}
	require.NoError(t, store.PutUser(owner))

	first := &models.EmergencyContact{UserID: owner.ID, Name: "李华", PhoneNumber: "13900139000"}
	require.NoError(t, svc.CreateContact(first))

	dup := &models.EmergencyContact{UserID: owner.ID, Name: "李华备用", PhoneNumber: "13900139000"}
	assert.ErrorIs(t, svc.CreateContact(dup), ErrAlreadyExists)

	// 不同用户下相同手机号不冲突
	other := &models.AppUser{Name: "李明", Phone: "13700137000"}
	require.NoError(t, store.PutUser(other))
	assert.NoError(t, svc.CreateContact(&models.EmergencyContact{
		UserID: other.ID, Name: "李华", PhoneNumber: "13900139000",
	}))
}

func TestCreateContactUnknownUser(t *testing.T) {
	store := newMemStore()
	svc := NewContactService(store, store)

	err := svc.CreateContact(&models.EmergencyContact{UserID: 999, Name: "李华", PhoneNumber: "13900139000"})
	assert.ErrorIs(t, err, ErrNotFound)
}
