package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// QRPrefix marks QR labels printed by this system.
const QRPrefix = "RMTRACER:"

// QRValue builds the QR payload for a record number.
func QRValue(noRM string) string {
	return QRPrefix + noRM
}

// ParseQRValue extracts the record number from a scanned QR payload.
// Values without the prefix are treated as a bare record number.
func ParseQRValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.TrimPrefix(raw, QRPrefix)
}

// GenerateNoRM produces a record number of the form RM-YYMM####.
func GenerateNoRM() string {
	now := time.Now()
	return fmt.Sprintf("RM-%02d%02d%04d", now.Year()%100, int(now.Month()), rand.Intn(10000))
}
