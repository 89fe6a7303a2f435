// Package logging holds goroutine annotation and log line helpers shared by the protocol packages.
package logging

import (
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"strconv"
)

// Labels are extra pprof labels attached to an annotated goroutine.
type Labels = map[string]any

// GoAnnotate runs fn in a new goroutine labelled with the caller's location and the given labels.
func GoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	go pprof.Do(ctx, getLabels(labelMap...), fn)
}

// DoAnnotate runs fn in the current goroutine with the labels applied for its duration.
func DoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	pprof.Do(ctx, getLabels(labelMap...), fn)
}

func getLabels(labelMap ...Labels) pprof.LabelSet {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		panic("failed to get caller's stack frame")
	}

	labels := []string{"fn", runtime.FuncForPC(pc).Name(), "file", file, "line", strconv.Itoa(line)}

	for _, labelMap := range labelMap {
		for key, val := range labelMap {
			labels = append(labels, key, fmt.Sprintf("%v", val))
		}
	}

	return pprof.Labels(labels...)
}
