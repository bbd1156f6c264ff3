package jsonfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Collection 一份以 JSON 陣列整檔儲存的資料集
// 讀取時整份載入，寫入時整份覆寫 (暫存檔 + fsync + rename，不會留下寫一半的檔案)
type Collection[T any] struct {
	path string
}

// NewCollection 建立指向 path 的資料集，檔案不存在時視為空集合
func NewCollection[T any](path string) *Collection[T] {
	return &Collection[T]{path: path}
}

// Path 回傳檔案路徑
func (c *Collection[T]) Path() string {
	return c.path
}

// LoadAll 讀取整份資料集
func (c *Collection[T]) LoadAll() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", c.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}
	items := make([]T, 0)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "decode %s", c.path)
	}
	return items, nil
}

// SaveAll 以原子方式覆寫整份資料集
func (c *Collection[T]) SaveAll(items []T) error {
	if items == nil {
		items = []T{}
	}
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", c.path)
	}
	tmpName := tmp.Name()
	// rename 成功後這個檔案已不存在，Remove 只會失敗而已
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "encode %s", c.path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return errors.Wrapf(err, "replace %s", c.path)
	}
	return nil
}
