package intent

// Kind 是意图的标签。
type Kind string

const (
	KindCreateToken     Kind = "create_token"
	KindClaimFees       Kind = "claim_fees"
	KindDistributeFunds Kind = "distribute_funds"
	KindCheckStatus     Kind = "check_status"
	KindHelp            Kind = "help"
	KindUnknown         Kind = "unknown"
)

// Pool 表示手续费领取所在的池子。
type Pool string

const (
	PoolPump       Pool = "pump"
	PoolMeteoraDBC Pool = "meteora-dbc"
)

// DistributionEqual 是目前唯一支持的分配方式。
const DistributionEqual = "equal"

// Intent 是从一条用户消息中提取出的结构化命令。
// 具体类型只能是本包中定义的六种之一。
type Intent interface {
	Kind() Kind
	isIntent()
}

// TokenParams 是创建代币所需的名称和符号。
type TokenParams struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// DistributionPlan 描述按人数平分的分发计划。
type DistributionPlan struct {
	TotalAmount   float64 `json:"total_amount"`
	UserCount     int     `json:"user_count"`
	AmountPerUser float64 `json:"amount_per_user"`
	Type          string  `json:"distribution_type"`
}

// CreateToken 请求创建代币，Token 为 nil 表示信息不足。
type CreateToken struct {
	Token *TokenParams
}

// ClaimFees 请求领取创作者手续费。
type ClaimFees struct {
	Pool Pool
}

// DistributeFunds 请求分发资金，Plan 为 nil 表示信息不足。
type DistributeFunds struct {
	Plan *DistributionPlan
}

// CheckStatus 请求查看统计信息。
type CheckStatus struct{}

// Help 请求命令说明。
type Help struct{}

// Unknown 表示无法识别的消息。
type Unknown struct{}

func (CreateToken) Kind() Kind     { return KindCreateToken }
func (ClaimFees) Kind() Kind       { return KindClaimFees }
func (DistributeFunds) Kind() Kind { return KindDistributeFunds }
func (CheckStatus) Kind() Kind     { return KindCheckStatus }
func (Help) Kind() Kind            { return KindHelp }
func (Unknown) Kind() Kind         { return KindUnknown }

func (CreateToken) isIntent()     {}
func (ClaimFees) isIntent()       {}
func (DistributeFunds) isIntent() {}
func (CheckStatus) isIntent()     {}
func (Help) isIntent()            {}
func (Unknown) isIntent()         {}
