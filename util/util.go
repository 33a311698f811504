package util

import (
	"context"
	"fmt"
	"log/slog"
)

// Debug is the highest DPrintf level that is emitted. Set once at startup.
var Debug uint64 = 0

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		slog.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, a...),
			"level", level)
	}
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	} else {
		return m
	}
}

func SumOverflows(n uint64, m uint64) bool {
	return n+m < n
}

func SumOverflows32(n uint32, m uint32) bool {
	return n+m < n
}
