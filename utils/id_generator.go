package utils

import (
	"github.com/google/uuid"
)

// IDGenerator 生成消息与事件的唯一标识，注入以便测试可控
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator 基于UUID v4的默认实现
type UUIDGenerator struct{}

// NewID 生成一个新的UUID字符串
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}
