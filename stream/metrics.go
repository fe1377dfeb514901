package stream

import (
	"context"

	"github.com/kbukum/monitkit/observability"
)

func recordBytesWritten(n int) {
	observability.Default().RecordBytesWritten(context.Background(), n)
}

func recordClosed(direction string) {
	observability.Default().RecordStreamClosed(context.Background(), direction)
}
