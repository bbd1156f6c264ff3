//go:build !unix && !windows

package filelock

import "os"

// 不支援 advisory lock 的平台只靠程序內的 mutex
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
