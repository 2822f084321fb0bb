// Package alerting 在发币、领取或分发失败时向 Slack 与钉钉推送告警。
package alerting
