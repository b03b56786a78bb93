package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 状态冲突.
	StatusConflict = 409
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
)

// 用户相关错误码 (101xxx).
const (
	// ErrUserNotFound - 404: 用户不存在.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: 用户已存在.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: 用户密码错误.
	ErrUserPasswordIncorrect
)

// 紧急联系人相关错误码 (102xxx).
const (
	// ErrContactNotFound - 404: 紧急联系人不存在.
	ErrContactNotFound int = iota + 102000
	// ErrContactAlreadyExist - 400: 紧急联系人已存在.
	ErrContactAlreadyExist
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 签到计划相关错误码 (106xxx).
const (
	// ErrScheduleNotFound - 404: 签到计划不存在.
	ErrScheduleNotFound int = iota + 106000
	// ErrScheduleValidation - 400: 签到计划校验失败.
	ErrScheduleValidation
	// ErrScheduleRateLimited - 429: 计划创建频率超限.
	ErrScheduleRateLimited
)

// 签到相关错误码 (107xxx).
const (
	// ErrCheckInNotFound - 404: 签到记录不存在.
	ErrCheckInNotFound int = iota + 107000
	// ErrCheckInAlreadyResolved - 409: 签到已完成或已错过.
	ErrCheckInAlreadyResolved
	// ErrCheckInMissingField - 400: 缺少必填的签到凭据.
	ErrCheckInMissingField
)

// 升级事件相关错误码 (108xxx).
const (
	// ErrEscalationNotFound - 404: 升级事件不存在.
	ErrEscalationNotFound int = iota + 108000
	// ErrEscalationAlreadyResolved - 409: 升级事件已解除.
	ErrEscalationAlreadyResolved
	// ErrDispatchFailed - 500: 通知发送失败.
	ErrDispatchFailed
)
