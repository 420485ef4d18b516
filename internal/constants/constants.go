// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Upload constants
const (
	// MaxUploadSize bounds multipart enrollment uploads (image plus form fields).
	MaxUploadSize = 20 << 20

	// MaxFrameSize bounds a single kiosk camera frame.
	MaxFrameSize = 8 << 20
)

// Kiosk constants
const (
	// KioskIdleTimeout closes kiosk sessions that sent nothing for this long.
	KioskIdleTimeout = 30 * time.Minute

	// KioskJanitorInterval is how often idle kiosk sessions are looked for.
	KioskJanitorInterval = 5 * time.Minute

	// MaxKioskSessions bounds the kiosk sessions open at the same time.
	MaxKioskSessions = 64
)

// Report constants
const (
	// ExportFilename is the default name of the attendance CSV export.
	ExportFilename = "attendance_report.csv"
)
