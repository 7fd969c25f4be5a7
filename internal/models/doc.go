package models

import (
	"encoding/json"
	"fmt"

	"uitforum/internal/docstore"
)

// Decode 将文档数据解码到结构体
func Decode(doc *docstore.Doc, v interface{}) error {
	if doc == nil || len(doc.Data) == 0 {
		return fmt.Errorf("empty document")
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", doc.Path, err)
	}
	return nil
}

// Encode 将结构体编码为文档字段
func Encode(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
