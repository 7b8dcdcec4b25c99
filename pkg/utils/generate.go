package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ==================== UUID ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func GenerateUUIDString() string {
	return uuid.New().String()
}

// ==================== BOOKING REFERENCE ====================

// GenerateBookingReference formats BK-YYYYMMDD-HHMMSS-RANDOM using the given clock reading.
func GenerateBookingReference(now time.Time) string {
	datePart := now.UTC().Format("20060102")
	timePart := now.UTC().Format("150405")
	randomPart := fmt.Sprintf("%06d", rand.Intn(1000000))

	return fmt.Sprintf("BK-%s-%s-%s", datePart, timePart, randomPart)
}
