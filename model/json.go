package model

import "encoding/json"

type jsonLeaf struct {
	Prediction int     `json:"prediction"`
	Loss       float64 `json:"loss"`
	Complexity float64 `json:"complexity"`
}

type jsonSplit struct {
	Feature         int             `json:"feature"`
	OriginalFeature int             `json:"original_feature"`
	Negative        json.RawMessage `json:"false"`
	Positive        json.RawMessage `json:"true"`
}

// MarshalJSON renders the tree as nested objects: leaves carry prediction,
// loss and complexity; internal nodes carry the split feature and the two
// branches under "false" and "true".
func (m *Model) MarshalJSON() ([]byte, error) {
	if m.terminal {
		return json.Marshal(jsonLeaf{
			Prediction: m.prediction,
			Loss:       m.loss,
			Complexity: m.complexity,
		})
	}

	neg, err := m.negative.MarshalJSON()
	if err != nil {
		return nil, err
	}
	pos, err := m.positive.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonSplit{
		Feature:         m.feature,
		OriginalFeature: m.originalFeature,
		Negative:        neg,
		Positive:        pos,
	})
}

// Serialize renders a set of models as an indented JSON array.
func Serialize(models []*Model) (string, error) {
	data, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
