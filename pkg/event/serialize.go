package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField は必須フィールドが欠けていることを表す。
var ErrMissingField = errors.New("必須フィールドがありません")

// Decode はイベントペイロードを指定された型にデシリアライズし、必須フィールドを検証する。
// *TがValidatorを実装していない場合は検証を行わない。
func Decode[T any](raw []byte) (*T, error) {
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	if v, ok := any(&data).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &data, nil
}
