package util

import (
	"testing"
	"time"
)

func TestClocks(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var c Clock = FixedClock{T: at}
	if !c.Now().Equal(at) {
		t.Errorf("FixedClock.Now = %v, want %v", c.Now(), at)
	}

	c = RealClock{}
	if loc := c.Now().Location(); loc != time.UTC {
		t.Errorf("RealClock location = %v, want UTC", loc)
	}
}
