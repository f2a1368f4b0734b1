package middlewares

import (
	"sync/atomic"
	"time"
)

type atomicTime struct{ ns atomic.Int64 }

func (t *atomicTime) Store(v time.Time) { t.ns.Store(v.UnixNano()) }
func (t *atomicTime) Load() time.Time   { return time.Unix(0, t.ns.Load()) }
