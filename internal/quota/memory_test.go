package quota_test

import (
	"testing"

	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/aman-churiwal/portfolio-api/internal/quota/quotatest"
)

func TestMemoryStore(t *testing.T) {
	quotatest.RunCounterStoreSuite(t, quota.NewMemoryStore())
}
