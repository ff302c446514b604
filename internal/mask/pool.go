package mask

import (
	"image"
	"sync"
)

// grayPool recycles scratch masks between morphology passes and across
// sheets of the same size.
type grayPool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

var scratch = &grayPool{
	pools: make(map[image.Rectangle]*sync.Pool),
}

// Get returns a mask covering rect. Its contents are undefined.
func (p *grayPool) Get(rect image.Rectangle) *image.Gray {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewGray(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.Gray)
}

func (p *grayPool) Put(m *image.Gray) {
	if m == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[m.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(m)
	}
}
