package models

import "time"

// TaskPayload 任务负载（tasks.payload JSONB 结构）
// 按证据类型建模为具名结构体切片，而不是无类型 map，
// 这样 CompletionRecordBuilder 可以穷举匹配
type TaskPayload struct {
	SelectedAssets []string              `json:"selected_assets,omitempty"`
	Temperatures   []TemperatureEvidence `json:"temperatures,omitempty"`
	PassFail       []PassFailEvidence    `json:"pass_fail,omitempty"`
	RepeatEntries  []RepeatEntry         `json:"repeat_entries,omitempty"`
	Checklist      []ChecklistItem       `json:"checklist,omitempty"`
	Documents      []DocumentRef         `json:"documents,omitempty"`
	LibraryRefs    []string              `json:"library_refs,omitempty"`
	Photos         []PhotoRef            `json:"photos,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	Dayparts       []string              `json:"dayparts,omitempty"` // 多时段标记；监控任务必须去掉
}

// TemperatureEvidence 单台设备的一条温度读数
type TemperatureEvidence struct {
	AssetID string  `json:"asset_id"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// PassFailEvidence 单台设备的 pass/fail 结果
type PassFailEvidence struct {
	AssetID string `json:"asset_id"`
	Passed  bool   `json:"passed"`
}

// RepeatEntry 可重复字段的一行（按设备）
type RepeatEntry struct {
	AssetID string            `json:"asset_id"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ChecklistItem 核对清单条目
type ChecklistItem struct {
	Label         string  `json:"label"`
	Required      bool    `json:"required"`
	Checked       bool    `json:"checked"`
	RequiresPhoto bool    `json:"requires_photo"`
	PhotoID       *string `json:"photo_id,omitempty"`
}

// DocumentRef 文档引用
type DocumentRef struct {
	DocumentID string     `json:"document_id"`
	Name       string     `json:"name,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// PhotoRef 照片引用
type PhotoRef struct {
	PhotoID    string `json:"photo_id"`
	ObjectName string `json:"object_name"`
}

// ProjectPayloadToAsset 把任务负载投影到单台设备
// 设备相关字段（selected_assets、读数、可重复条目）过滤到且仅到 assetID，
// 非设备相关字段（清单、文档、库引用、照片、备注）原样保留，
// 多时段标记一律去掉：监控任务只有一次发生
func ProjectPayloadToAsset(p TaskPayload, assetID string) TaskPayload {
	out := TaskPayload{
		Checklist:   p.Checklist,
		Documents:   p.Documents,
		LibraryRefs: p.LibraryRefs,
		Photos:      p.Photos,
		Notes:       p.Notes,
	}

	for _, id := range p.SelectedAssets {
		if id == assetID {
			out.SelectedAssets = []string{assetID}
			break
		}
	}
	for _, t := range p.Temperatures {
		if t.AssetID == assetID {
			out.Temperatures = append(out.Temperatures, t)
		}
	}
	for _, pf := range p.PassFail {
		if pf.AssetID == assetID {
			out.PassFail = append(out.PassFail, pf)
		}
	}
	for _, re := range p.RepeatEntries {
		if re.AssetID == assetID {
			out.RepeatEntries = append(out.RepeatEntries, re)
		}
	}

	return out
}
