package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// 清除畫面並把游標移到左上角
const clearSequence = "\033[H\033[2J"

// Terminal 處理選單的輸入輸出
type Terminal struct {
	in    io.Reader
	out   io.Writer
	clear bool
	pause time.Duration

	once      sync.Once
	lines     chan string
	closeOnce sync.Once
	done      chan struct{}
}

// NewTerminal 建立 Terminal
//
// 參數:
//
//	in: 使用者輸入
//	out: 畫面輸出
//	clear: 是否在切換畫面時清除螢幕
//	pause: 顯示訊息後停頓的時間
func NewTerminal(in io.Reader, out io.Writer, clear bool, pause time.Duration) *Terminal {
	return &Terminal{
		in:    in,
		out:   out,
		clear: clear,
		pause: pause,
		done:  make(chan struct{}),
	}
}

// startReader 在背景逐行讀取輸入，讓 Prompt 可以被 ctx 中斷
// 輸入結束時關閉 lines
func (t *Terminal) startReader() {
	t.lines = make(chan string)
	go func() {
		defer close(t.lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case t.lines <- scanner.Text():
			case <-t.done:
				return
			}
		}
	}()
}

// Prompt 顯示提示並讀取一行輸入 (已去除前後空白)
// 輸入結束回傳 io.EOF，ctx 取消時回傳 ctx.Err()
func (t *Terminal) Prompt(ctx context.Context, label string) (string, error) {
	t.once.Do(t.startReader)
	select {
	case <-t.done:
		return "", io.EOF
	default:
	}
	fmt.Fprint(t.out, label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", io.EOF
	case line, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// Close 停止背景讀取，之後的 Prompt 回傳 io.EOF
// 正在等待輸入的 Read 無法中斷，讀到下一行後才會結束
func (t *Terminal) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Clear 清除畫面
func (t *Terminal) Clear() {
	if t.clear {
		fmt.Fprint(t.out, clearSequence)
	}
}

// Pause 停頓一段時間讓使用者看清楚訊息
func (t *Terminal) Pause(ctx context.Context) {
	if t.pause <= 0 {
		return
	}
	timer := time.NewTimer(t.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *Terminal) Println(a ...any) {
	fmt.Fprintln(t.out, a...)
}

func (t *Terminal) Printf(format string, a ...any) {
	fmt.Fprintf(t.out, format, a...)
}
