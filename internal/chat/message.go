package chat

import (
	"time"

	"Creator-SDK/internal/intent"

	"github.com/google/uuid"
)

// Sender 标识消息的发送方。
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message 是对话历史中的一条记录，创建后不再修改。
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(sender Sender, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: now,
	}
}

// Action 是对话层要求上层执行的操作。
type Action string

const (
	ActionCreateToken     Action = "create_token"
	ActionClaimFees       Action = "claim_fees"
	ActionCheckStatus     Action = "check_status"
	ActionDistributeFunds Action = "distribute_funds"
)

// Response 是一轮对话的输出。Token 与 Distribution 只在对应动作存在时填写。
type Response struct {
	Message      string                   `json:"message"`
	Actions      []Action                 `json:"actions,omitempty"`
	Token        *intent.TokenParams      `json:"token,omitempty"`
	Distribution *intent.DistributionPlan `json:"distribution,omitempty"`
}

// HasAction 判断响应是否包含指定动作。
func (r Response) HasAction(action Action) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}
