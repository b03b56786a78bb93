package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
	"emergencize-checkin-service/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT主题常量
const (
	TopicUserPush      = "checkin/user/%d/push"     // 用户推送通知
	TopicLocationShare = "checkin/user/%d/location" // 位置共享广播
	TopicSystemMessage = "checkin/system/message"   // 系统级消息
)

// NotifyTarget 通知投递目标
type NotifyTarget struct {
	UserID    uint   `json:"user_id,omitempty"`
	ContactID uint   `json:"contact_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}

// DispatchResult 单次通知动作的执行结果
type DispatchResult struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// InterfaceNotificationService defines the notification dispatcher interface
type InterfaceNotificationService interface {
	Send(action models.ActionType, target NotifyTarget, message string) DispatchResult
	Connect() error
}

// pushMessage MQTT推送消息体
type pushMessage struct {
	MessageID string      `json:"message_id"`
	Kind      string      `json:"kind"` // reminder/escalation/location_share
	Title     string      `json:"title,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// gatewayRequest 通知网关的统一请求体（短信/语音/邮件/紧急服务共用）
type gatewayRequest struct {
	Channel   string `json:"channel"` // sms/call/email/emergency_services
	To        string `json:"to"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// NotificationService 负责执行具体的通知动作。
// push与位置共享走MQTT，短信/语音/邮件/紧急服务走通知网关HTTP接口。
type NotificationService struct {
	Config *config.Config
	IDGen  utils.IDGenerator

	Client     mqtt.Client
	httpClient *http.Client

	IsConnected    bool
	connectedMutex sync.RWMutex
	PublishMutex   sync.Mutex
}

// NewNotificationService 创建通知分发服务
func NewNotificationService(cfg *config.Config, idGen utils.IDGenerator) *NotificationService {
	service := &NotificationService{
		Config: cfg,
		IDGen:  idGen,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	service.setupMQTTClient()
	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *NotificationService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBroker)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s", s.Config.MQTTClientID, s.IDGen.NewID()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)

	// 添加用户名和密码
	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		config.Warning("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		config.Info("[MQTT] 成功连接到 %s", s.Config.MQTTBroker)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
	})

	s.Client = mqtt.NewClient(opts)
}

// Connect 连接MQTT服务器，带重试
func (s *NotificationService) Connect() error {
	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if isConnected {
		return nil
	}

	maxRetries := 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		token := s.Client.Connect()
		if token.WaitTimeout(5*time.Second) && token.Error() == nil {
			s.connectedMutex.Lock()
			s.IsConnected = true
			s.connectedMutex.Unlock()
			return nil
		}
		if token.Error() != nil {
			lastErr = token.Error()
		} else {
			lastErr = fmt.Errorf("连接超时")
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return fmt.Errorf("MQTT连接失败: %v", lastErr)
}

// Send 执行一个通知动作并返回结果。失败不抛错，由调用方记录。
func (s *NotificationService) Send(action models.ActionType, target NotifyTarget, message string) DispatchResult {
	switch action {
	case models.ActionPush:
		return s.sendPush(target, "reminder", message, nil)
	case models.ActionLocationShare:
		return s.sendLocationShare(target, message)
	case models.ActionSMS:
		return s.sendViaGateway("sms", target.Phone, message)
	case models.ActionCall:
		return s.sendViaGateway("call", target.Phone, message)
	case models.ActionEmail:
		return s.sendViaGateway("email", target.Email, message)
	case models.ActionEmergencyServices:
		// 紧急服务通道也走网关，由网关侧对接实际的报警出口
		return s.sendViaGateway("emergency_services", target.Phone, message)
	default:
		return DispatchResult{Success: false, Error: fmt.Sprintf("未知的动作类型: %s", action)}
	}
}

// sendPush 通过MQTT发布推送消息
func (s *NotificationService) sendPush(target NotifyTarget, kind, message string, data interface{}) DispatchResult {
	topic := fmt.Sprintf(TopicUserPush, target.UserID)
	payload := pushMessage{
		MessageID: s.IDGen.NewID(),
		Kind:      kind,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := s.publishMessage(topic, payload); err != nil {
		return DispatchResult{Success: false, Error: err.Error()}
	}
	return DispatchResult{Success: true, Response: "push delivered to " + topic}
}

// sendLocationShare 通过MQTT广播位置共享请求
func (s *NotificationService) sendLocationShare(target NotifyTarget, message string) DispatchResult {
	topic := fmt.Sprintf(TopicLocationShare, target.UserID)
	payload := pushMessage{
		MessageID: s.IDGen.NewID(),
		Kind:      "location_share",
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := s.publishMessage(topic, payload); err != nil {
		return DispatchResult{Success: false, Error: err.Error()}
	}
	return DispatchResult{Success: true, Response: "location share broadcast on " + topic}
}

// publishMessage 发布MQTT消息，QoS 1确保至少传递一次
func (s *NotificationService) publishMessage(topic string, payload interface{}) error {
	// 加锁保护发布过程，避免并发发布冲突
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	// 检查连接状态
	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if !isConnected {
		config.Warning("[MQTT] 客户端未连接，尝试重新连接...")
		if err := s.Connect(); err != nil {
			return fmt.Errorf("MQTT客户端未连接: %v", err)
		}
	}

	// 序列化消息
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	qos := byte(1)
	retained := false

	token := s.Client.Publish(topic, qos, retained, jsonData)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("发布消息超时: topic=%s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("发布消息失败: %v", token.Error())
	}
	return nil
}

// sendViaGateway 通过通知网关发送短信/语音/邮件
func (s *NotificationService) sendViaGateway(channel, to, message string) DispatchResult {
	if to == "" {
		return DispatchResult{Success: false, Error: fmt.Sprintf("%s通道缺少投递地址", channel)}
	}

	reqBody := gatewayRequest{
		Channel:   channel,
		To:        to,
		Message:   message,
		RequestID: s.IDGen.NewID(),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return DispatchResult{Success: false, Error: "序列化请求失败: " + err.Error()}
	}

	url := s.Config.NotifyGatewayURL + "/api/notify"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return DispatchResult{Success: false, Error: "构建请求失败: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Config.NotifyGatewayAPIKey != "" {
		req.Header.Set("X-API-Key", s.Config.NotifyGatewayAPIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return DispatchResult{Success: false, Error: "网关请求失败: " + err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return DispatchResult{
			Success: false,
			Error:   fmt.Sprintf("网关返回 %d: %s", resp.StatusCode, string(body)),
		}
	}

	return DispatchResult{Success: true, Response: string(body)}
}
