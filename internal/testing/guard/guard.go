package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CREWBOARD_TEST_MODE") == "" {
			_ = os.Setenv("CREWBOARD_TEST_MODE", "1")
		}
	})
}
