package evaluator

import "compliance-engine/internal/models"

// ResolveContractor 按优先级为设备选择承包商
// reactive → preventive/PPM → warranty，取第一个非空
// 设备为空（如站点上无关联设备的消防/应急照明检查）返回 nil，
// 调用方回退到手工录入承包商——这是受支持的正常路径
func ResolveContractor(asset *models.Asset) *string {
	if asset == nil {
		return nil
	}
	if asset.ReactiveContractorID != nil && *asset.ReactiveContractorID != "" {
		return asset.ReactiveContractorID
	}
	if asset.PPMContractorID != nil && *asset.PPMContractorID != "" {
		return asset.PPMContractorID
	}
	if asset.WarrantyContractorID != nil && *asset.WarrantyContractorID != "" {
		return asset.WarrantyContractorID
	}
	return nil
}
