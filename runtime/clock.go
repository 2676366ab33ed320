package runtime

import (
	"encoding/binary"
	"sync"
	"time"
)

const clockStorePropertyKey = "RUNTIME:CLOCK:MONOTONIC"

// Clock issues strictly increasing timestamps and persists the high water
// mark, so receipt ordering survives restarts even if the wall clock moves
// backwards.
type Clock struct {
	sync.Mutex
	store Store
	now   time.Time
}

func NewClock(store Store) (*Clock, error) {
	clock := &Clock{store: store}
	bs, err := store.ReadProperty([]byte(clockStorePropertyKey))
	if err != nil {
		return nil, err
	}
	if len(bs) == 8 {
		clock.now = time.Unix(0, int64(binary.BigEndian.Uint64(bs)))
	}
	return clock, nil
}

func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()

	now := time.Now()
	if !now.After(c.now) {
		now = c.now.Add(time.Nanosecond)
	}
	c.now = now

	val := binary.BigEndian.AppendUint64(nil, uint64(now.UnixNano()))
	for {
		err := c.store.WriteProperty([]byte(clockStorePropertyKey), val)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	return now
}
