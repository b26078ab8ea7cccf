package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("UNIPULSE_TEST_MODE") == "" {
			_ = os.Setenv("UNIPULSE_TEST_MODE", "1")
		}
	})
}
