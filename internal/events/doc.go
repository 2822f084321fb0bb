// Package events 定义操作结果事件以及内存、Redis、RabbitMQ 三种投递方式。
package events
