package utils

import "sync"

// GDAL dataset handles are not safe for concurrent use; every raster read
// goes through this lock.
var gdalMu sync.Mutex

func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
