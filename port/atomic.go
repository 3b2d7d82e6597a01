package port

import "sync/atomic"

func casInt32(addr *int32, old, new int32) bool {
	return atomic.CompareAndSwapInt32(addr, old, new)
}

func storeInt32(addr *int32, val int32) {
	atomic.StoreInt32(addr, val)
}
