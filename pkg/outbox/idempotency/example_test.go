package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_Claim() {
	ctx := context.Background()
	manager, _ := NewManager(newMemoryStore(), 30*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for i := 0; i < 3; i++ {
		state, _ := manager.Claim(ctx, "analytics", eventID)
		fmt.Println(state)
		if i == 1 {
			_ = manager.Complete(ctx, "analytics", eventID)
		}
	}
	// Output:
	// claimed
	// in_flight
	// done
}
