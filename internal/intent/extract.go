package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// 带引号的名称到闭合引号为止；否则在 "with symbol" / "ticker" 子句或结尾前结束，并去掉末尾标点。
	tokenNamePattern   = regexp.MustCompile(`(?i)(?:token|coin)\s+(?:called|named)\s+(?:["']([^"']+)["']|([^"']+?)[,;:.!]*(?:\s+(?:(?:with|and)\s+)?(?:the\s+)?(?:symbol|ticker)\b|\s*$))`)
	tokenSymbolPattern = regexp.MustCompile(`(?i)(?:symbol|ticker)\s+["']?([A-Z]+)["']?`)
	tokenAltPattern    = regexp.MustCompile(`(?i)create\s+["']?([^"']+)["']?\s+(?:with\s+symbol\s+)?["']?([A-Z]+)["']?`)

	poolPattern = regexp.MustCompile(`(?i)(?:from|on)\s+(meteora|pump)`)

	amountPattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*sol`)
	userCountPattern = regexp.MustCompile(`(?i)(\d+)\s+users?`)
)

// Extract 将自由文本映射为意图。规则按顺序匹配，先命中者生效。
func Extract(text string) Intent {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "create") && (strings.Contains(lower, "token") || strings.Contains(lower, "coin")) {
		return CreateToken{Token: extractToken(text)}
	}

	if strings.Contains(lower, "claim") && strings.Contains(lower, "fee") {
		return ClaimFees{Pool: extractPool(text)}
	}

	// "send" 只有和 "users" 同时出现才算分发，"distribute" 单独出现即可。
	if strings.Contains(lower, "distribute") || (strings.Contains(lower, "send") && strings.Contains(lower, "users")) {
		return DistributeFunds{Plan: extractPlan(text)}
	}

	if strings.Contains(lower, "status") || strings.Contains(lower, "balance") || strings.Contains(lower, "stats") {
		return CheckStatus{}
	}

	if strings.Contains(lower, "help") || strings.Contains(lower, "commands") {
		return Help{}
	}

	return Unknown{}
}

func extractToken(text string) *TokenParams {
	nameMatch := tokenNamePattern.FindStringSubmatch(text)
	symbolMatch := tokenSymbolPattern.FindStringSubmatch(text)
	if nameMatch != nil && symbolMatch != nil {
		name := nameMatch[1]
		if name == "" {
			name = nameMatch[2]
		}
		name = strings.TrimSpace(strings.TrimRight(name, ",;:.! "))
		symbol := strings.ToUpper(strings.TrimSpace(symbolMatch[1]))
		if name != "" && symbol != "" {
			return &TokenParams{Name: name, Symbol: symbol}
		}
	}

	if alt := tokenAltPattern.FindStringSubmatch(text); alt != nil {
		name := strings.TrimSpace(alt[1])
		symbol := strings.ToUpper(strings.TrimSpace(alt[2]))
		if name != "" && symbol != "" {
			return &TokenParams{Name: name, Symbol: symbol}
		}
	}
	return nil
}

func extractPool(text string) Pool {
	match := poolPattern.FindStringSubmatch(text)
	if match == nil {
		return PoolPump
	}
	if strings.EqualFold(match[1], "meteora") {
		return PoolMeteoraDBC
	}
	return PoolPump
}

func extractPlan(text string) *DistributionPlan {
	amountMatch := amountPattern.FindStringSubmatch(text)
	countMatch := userCountPattern.FindStringSubmatch(text)
	if amountMatch == nil || countMatch == nil {
		return nil
	}

	total, err := strconv.ParseFloat(amountMatch[1], 64)
	if err != nil {
		return nil
	}
	count, err := strconv.Atoi(countMatch[1])
	if err != nil || count <= 0 {
		return nil
	}

	return &DistributionPlan{
		TotalAmount:   total,
		UserCount:     count,
		AmountPerUser: total / float64(count),
		Type:          DistributionEqual,
	}
}
