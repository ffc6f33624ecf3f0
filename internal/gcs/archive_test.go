package gcs

import (
	"strings"
	"testing"
	"time"
)

func TestObjectName(t *testing.T) {
	ts := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)

	name := objectName(ts)
	if !strings.HasPrefix(name, "receipts/2025/06/03/") {
		t.Errorf("objectName() = %q, want receipts/2025/06/03/ prefix", name)
	}

	suffix := strings.TrimPrefix(name, "receipts/2025/06/03/")
	if suffix == "" {
		t.Error("objectName() missing unique suffix")
	}
	if other := objectName(ts); other == name {
		t.Error("objectName() must differ between calls")
	}
}
