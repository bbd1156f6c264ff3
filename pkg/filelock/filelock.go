// Package filelock 以作業系統的 advisory lock 確保同一時間只有一個程序使用資料目錄
package filelock

import (
	"errors"
	"os"
	"sync"
)

// ErrLocked 鎖已被其他程序持有
var ErrLocked = errors.New("filelock: already locked by another process")

// Lock 持有中的檔案鎖
type Lock struct {
	file *os.File
	mu   sync.Mutex
}

// TryLock 嘗試取得 path 的獨佔鎖，不等待
// 已被其他程序持有時回傳 ErrLocked
func TryLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(file); err != nil {
		file.Close()
		return nil, err
	}
	return &Lock{file: file}, nil
}

// Path 回傳鎖檔路徑
func (l *Lock) Path() string {
	return l.file.Name()
}

// Unlock 釋放鎖，可重複呼叫
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
