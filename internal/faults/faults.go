// Package faults 定义引擎的错误分类
//
// ValidationError：缺少必填证据/设备选择/维修摘要，阻止提交，不落任何数据
// ConfigError：未知工作流类型、模板缺少升级配置；上报后按"不升级"继续，
// 合规数据采集不能被配置错误阻塞
// 软失败（通知发送、派单关闭的次级 RPC）以 warning 字符串出现在结果类型里，
// 不走 error 通道；硬失败用 fmt.Errorf("%w") 正常上抛
package faults

import (
	"errors"
	"fmt"
)

// ValidationError 输入校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validation 创建校验错误
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation 判断是否校验错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ConfigError 配置错误
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Config 创建配置错误
func Config(reason string) error {
	return &ConfigError{Reason: reason}
}

// IsConfig 判断是否配置错误
func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}
