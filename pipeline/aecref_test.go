package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAECReferenceStoreAndLoad(t *testing.T) {
	ref := newAECReference(4)
	ref.store([]int16{1, 2, 3, 4})

	out := make([]int16, 4)
	ref.loadInto(out)
	assert.Equal(t, []int16{1, 2, 3, 4}, out)
}

func TestAECReferenceConcurrentStoreAndLoadDoNotRace(t *testing.T) {
	ref := newAECReference(8)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		frame := make([]int16, 8)
		for i := 0; i < 500; i++ {
			for j := range frame {
				frame[j] = int16(i)
			}
			ref.store(frame)
		}
	}()

	go func() {
		defer wg.Done()
		out := make([]int16, 8)
		for i := 0; i < 500; i++ {
			ref.loadInto(out)
		}
	}()

	wg.Wait()
}
