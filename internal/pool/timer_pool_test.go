package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		assert.NotNil(timer1)

		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer2)

		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Reused Timer Does Not Fire Early", func(t *testing.T) {
		timer1 := GetTimer(5 * time.Millisecond)
		<-timer1.C
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(50 * time.Millisecond)
		fired := <-timer2.C
		PutTimer(timer2)

		assert.GreaterOrEqual(fired.Sub(begin), 45*time.Millisecond)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	assert := assert.New(t)

	t.Run("Elapses", func(t *testing.T) {
		begin := time.Now()
		assert.NoError(Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)
	})

	t.Run("Zero Duration", func(t *testing.T) {
		assert.NoError(Sleep(context.Background(), 0))
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		begin := time.Now()
		err := Sleep(ctx, 5*time.Second)
		assert.ErrorIs(err, context.Canceled)
		assert.Less(time.Since(begin), time.Second)
	})

	t.Run("Already Cancelled With Zero Duration", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(Sleep(ctx, 0), context.Canceled)
	})
}
