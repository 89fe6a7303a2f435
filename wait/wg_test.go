package wait

import (
	"sync/atomic"
	"testing"

	"github.com/courier-mail/courier/async"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestGroupRecoversWithHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	var count atomic.Int32

	wg := &Group{PanicHandler: async.LogPanicHandler{Name: "test"}}

	for i := 0; i < 4; i++ {
		wg.Go(func() {
			count.Add(1)
			panic("boom")
		})
	}

	wg.Wait()

	require.Equal(t, int32(4), count.Load())
}
