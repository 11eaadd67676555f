package evaluator

import "compliance-engine/internal/models"

// 热保温检查的固定阈值：忽略设备自身限值
// 低于 60 为 critical，[60, 63) 为 warning，>= 63 为 ok
const (
	HotHoldingMin           = 63.0
	HotHoldingCriticalBelow = 60.0
)

// Tolerances 超限容差（相对 min/max 的偏差量）
type Tolerances struct {
	Warning  float64
	Critical float64
}

// DefaultTolerances 默认容差：warning 2 个单位，critical 5 个单位
func DefaultTolerances() Tolerances {
	return Tolerances{Warning: 2, Critical: 5}
}

// Result 阈值分类结果
type Result struct {
	Severity   models.Severity
	OutOfRange bool
}

// Evaluate 把数值读数按工作范围分类
// 纯函数，无副作用：录入时实时调用和提交时再次调用结果一致
// 规则：
//   - min/max 都缺失 → 永不超限
//   - 低于 min 即至少 warning；偏差 >= critical 容差 → critical；max 侧对称
//   - 只用普通数值比较，全负数区间（min=-20, max=-18）不需要特判
func Evaluate(value float64, min, max *float64, tol Tolerances) Result {
	if min == nil && max == nil {
		return Result{Severity: models.SeverityOK}
	}
	if min != nil && value < *min {
		return classify(*min-value, tol)
	}
	if max != nil && value > *max {
		return classify(value-*max, tol)
	}
	return Result{Severity: models.SeverityOK}
}

func classify(delta float64, tol Tolerances) Result {
	if delta >= tol.Critical {
		return Result{Severity: models.SeverityCritical, OutOfRange: true}
	}
	// 超出范围即至少 warning，无论偏差多小
	return Result{Severity: models.SeverityWarning, OutOfRange: true}
}

// EvaluateHotHolding 热保温读数分类（固定下限，无上限）
func EvaluateHotHolding(value float64) Result {
	switch {
	case value >= HotHoldingMin:
		return Result{Severity: models.SeverityOK}
	case value < HotHoldingCriticalBelow:
		return Result{Severity: models.SeverityCritical, OutOfRange: true}
	default:
		return Result{Severity: models.SeverityWarning, OutOfRange: true}
	}
}

// EvaluateInspection pass/fail 巡检结果分类
// 巡检没有偏差幅度，fail 统一按 warning 超限处理，升级策略由模板决定
func EvaluateInspection(passed bool) Result {
	if passed {
		return Result{Severity: models.SeverityOK}
	}
	return Result{Severity: models.SeverityWarning, OutOfRange: true}
}

// EvaluateForTemplate 按模板规则对读数分类
// 热保温模板忽略设备限值；容差优先取模板升级配置，
// 其次站点配置的 defaults，都没配才用内置默认值
func EvaluateForTemplate(tpl *models.Template, asset *models.Asset, value float64, defaults Tolerances) Result {
	if tpl != nil && tpl.HotHolding {
		return EvaluateHotHolding(value)
	}

	tol := DefaultTolerances()
	if defaults.Warning > 0 {
		tol.Warning = defaults.Warning
	}
	if defaults.Critical > 0 {
		tol.Critical = defaults.Critical
	}
	if tpl != nil && tpl.Escalation != nil {
		if tpl.Escalation.WarningTolerance > 0 {
			tol.Warning = tpl.Escalation.WarningTolerance
		}
		if tpl.Escalation.CriticalTolerance > 0 {
			tol.Critical = tpl.Escalation.CriticalTolerance
		}
	}

	var min, max *float64
	if asset != nil {
		min = asset.WorkingTempMin
		max = asset.WorkingTempMax
	}
	return Evaluate(value, min, max, tol)
}
