package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTokenInvalid:    "无效的认证令牌",
	ErrTooManyRequests: "请求频率过高",

	// 用户相关错误码
	ErrUserNotFound:          "用户不存在",
	ErrUserAlreadyExist:      "用户已存在",
	ErrUserPasswordIncorrect: "用户密码错误",

	// 紧急联系人相关错误码
	ErrContactNotFound:     "紧急联系人不存在",
	ErrContactAlreadyExist: "紧急联系人已存在",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 签到计划相关错误码
	ErrScheduleNotFound:   "签到计划不存在",
	ErrScheduleValidation: "签到计划校验失败",
	ErrScheduleRateLimited: "计划创建过于频繁，请稍后再试",

	// 签到相关错误码
	ErrCheckInNotFound:        "签到记录不存在",
	ErrCheckInAlreadyResolved: "该签到已完成或已错过",
	ErrCheckInMissingField:    "缺少必填的签到凭据",

	// 升级事件相关错误码
	ErrEscalationNotFound:        "升级事件不存在",
	ErrEscalationAlreadyResolved: "升级事件已解除",
	ErrDispatchFailed:            "通知发送失败",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,

	// 用户相关错误码
	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	// 紧急联系人相关错误码
	ErrContactNotFound:     StatusNotFound,
	ErrContactAlreadyExist: StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 签到计划相关错误码
	ErrScheduleNotFound:    StatusNotFound,
	ErrScheduleValidation:  StatusBadRequest,
	ErrScheduleRateLimited: StatusTooManyRequests,

	// 签到相关错误码
	ErrCheckInNotFound:        StatusNotFound,
	ErrCheckInAlreadyResolved: StatusConflict,
	ErrCheckInMissingField:    StatusBadRequest,

	// 升级事件相关错误码
	ErrEscalationNotFound:        StatusNotFound,
	ErrEscalationAlreadyResolved: StatusConflict,
	ErrDispatchFailed:            StatusInternalServerError,
}

// GetMessage 获取错误码对应的消息
func GetMessage(errorCode int) string {
	if msg, ok := codeMessageMap[errorCode]; ok {
		return msg
	}
	return codeMessageMap[ErrUnknown]
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(errorCode int) int {
	if status, ok := codeStatusMap[errorCode]; ok {
		return status
	}
	return StatusInternalServerError
}
