package analytics

import "netinspect/pkg/model"

// PreferenceMetrics 偏好快照概要
type PreferenceMetrics struct {
	Total    int                            `json:"total"`
	BySource map[model.PreferenceSource]int `json:"bySource"`
	ByType   map[model.ValueKind]int        `json:"byType"`
	BySuite  map[string]int                 `json:"bySuite"`
}

func ComputePreferenceMetrics(prefs []model.Preference) PreferenceMetrics {
	m := PreferenceMetrics{
		Total:    len(prefs),
		BySource: make(map[model.PreferenceSource]int),
		ByType:   make(map[model.ValueKind]int),
		BySuite:  make(map[string]int),
	}
	for _, p := range prefs {
		m.BySource[p.Source]++
		m.ByType[p.Type]++
		if p.Suite != "" {
			m.BySuite[p.Suite]++
		}
	}
	return m
}
