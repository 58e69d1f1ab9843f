package websocket

import (
	"sync"
	"testing"

	"github.com/orexfx/websocket/internal/test/assert"
)

func Test_serialExecutor(t *testing.T) {
	t.Parallel()

	t.Run("order", func(t *testing.T) {
		t.Parallel()

		e := newSerialExecutor()
		var got []int
		for i := 0; i < 100; i++ {
			i := i
			e.Execute(func() {
				got = append(got, i)
			})
		}
		e.close()
		<-e.done

		exp := make([]int, 100)
		for i := range exp {
			exp[i] = i
		}
		assert.Equal(t, "order", exp, got)
	})

	t.Run("oneAtATime", func(t *testing.T) {
		t.Parallel()

		e := newSerialExecutor()
		var mu sync.Mutex
		running := 0
		for i := 0; i < 50; i++ {
			e.Execute(func() {
				mu.Lock()
				running++
				n := running
				mu.Unlock()
				if n != 1 {
					t.Errorf("%v functions running at once", n)
				}
				mu.Lock()
				running--
				mu.Unlock()
			})
		}
		e.close()
		<-e.done
	})

	t.Run("afterClose", func(t *testing.T) {
		t.Parallel()

		e := newSerialExecutor()
		e.close()
		<-e.done

		e.Execute(func() {
			t.Error("function ran after close")
		})
	})
}

func TestInlineExecutor(t *testing.T) {
	t.Parallel()

	ran := false
	InlineExecutor.Execute(func() {
		ran = true
	})
	assert.Equal(t, "ran", true, ran)
}

func TestExecutorOption(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	executed := 0
	exec := ExecutorFunc(func(fn func()) {
		mu.Lock()
		executed++
		mu.Unlock()
		fn()
	})

	c, rec, _ := newPipeConn(t, &Options{Executor: exec})
	nextEvent[OpenEvent](t, rec)
	c.CloseNow()
	nextEvent[EndEvent](t, rec)
	<-c.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "executed", 2, executed)
}
