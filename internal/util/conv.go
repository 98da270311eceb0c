package util

import (
	"strconv"
)

// ParseUint 将路径参数转换为无符号整数，非法或为 0 时返回 false
func ParseUint(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
