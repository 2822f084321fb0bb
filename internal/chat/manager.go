package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Creator-SDK/internal/intent"
)

// Manager 维护有序的对话历史，并将用户消息转换为回复与待执行的动作。
type Manager struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

// Option 定义可选的 Manager 配置。
type Option func(*Manager)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager 创建一个空的对话管理器。
func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Process 记录用户消息，识别意图并生成回复，随后记录助手消息。
func (m *Manager) Process(_ context.Context, content string) Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, newMessage(SenderUser, content, m.now()))

	var resp Response
	switch in := intent.Extract(content).(type) {
	case intent.CreateToken:
		resp = createTokenResponse(in)
	case intent.ClaimFees:
		resp = claimFeesResponse(in)
	case intent.DistributeFunds:
		resp = distributeResponse(in)
	case intent.CheckStatus:
		resp = checkStatusResponse()
	case intent.Help:
		resp = Response{Message: helpText}
	default:
		resp = Response{Message: unknownText}
	}

	m.messages = append(m.messages, newMessage(SenderAssistant, resp.Message, m.now()))
	return resp
}

// Messages 返回对话历史的副本，按写入顺序排列。
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Clear 清空对话历史，其余配置保持不变。
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func createTokenResponse(in intent.CreateToken) Response {
	if in.Token == nil || in.Token.Name == "" || in.Token.Symbol == "" {
		return Response{Message: createTokenPrompt}
	}
	token := *in.Token
	return Response{
		Message: fmt.Sprintf("I'll help you create the token %q with symbol %s. Let me process this for you...", token.Name, token.Symbol),
		Actions: []Action{ActionCreateToken},
		Token:   &token,
	}
}

// claimFeesResponse 不会把识别出的 pool 传给上层，领取始终使用默认参数。
func claimFeesResponse(intent.ClaimFees) Response {
	return Response{
		Message: "I'll check and claim any available creator fees from your tokens. This may take a moment...",
		Actions: []Action{ActionClaimFees},
	}
}

func distributeResponse(in intent.DistributeFunds) Response {
	if in.Plan == nil {
		return Response{Message: distributePrompt}
	}
	plan := *in.Plan
	return Response{
		Message:      fmt.Sprintf("I'll distribute funds to %d recipients. Processing the distribution now...", plan.UserCount),
		Actions:      []Action{ActionDistributeFunds},
		Distribution: &plan,
	}
}

func checkStatusResponse() Response {
	return Response{
		Message: "Let me check your creator stats and token status...",
		Actions: []Action{ActionCheckStatus},
	}
}

const createTokenPrompt = "I'd be happy to help you create a token! I need some information:\n\n" +
	"• Token name (e.g., 'My Awesome Token')\n" +
	"• Token symbol (e.g., 'MAT')\n" +
	"• Description (optional)\n" +
	"• Image URL (optional)\n\n" +
	"Please provide these details and I'll create your token on pump.fun!"

const distributePrompt = "To distribute funds, please provide recipient addresses and amounts. Example format:\n\n" +
	"• Address1: 0.1 SOL\n" +
	"• Address2: 0.2 SOL\n\n" +
	"Or tell me how many users and I'll help you set up equal distribution!"

const helpText = `**Creator SDK Commands:**

🪙 **Create Token**: "Create a token called [name] with symbol [symbol]"
💰 **Claim Fees**: "Claim my creator fees"
📤 **Distribute**: "Distribute [amount] SOL to [recipients]"
📊 **Status**: "Check my status" or "Show my stats"
❓ **Help**: "Help" or "Show commands"

**Example Commands:**
• "Create a token called Moon Rocket with symbol MOON"
• "Claim my fees from all tokens"
• "Distribute 1 SOL equally to 10 users"
• "What's my current balance?"

Just type naturally and I'll understand what you want to do!`

const unknownText = "I'm not sure what you'd like to do. Here are some things I can help with:\n\n" +
	"• Create new tokens on pump.fun\n" +
	"• Claim creator fees from your tokens\n" +
	"• Distribute funds to multiple users\n" +
	"• Check your creator stats\n\n" +
	"Type 'help' to see all available commands!"
