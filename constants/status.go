package constants

// IntakeStatus is the canonical status of a document moving through intake.
type IntakeStatus string

// Stable values (logged and reported as these exact strings).
const (
	IntakeStatusQueued   IntakeStatus = "QUEUED"
	IntakeStatusRunning  IntakeStatus = "RUNNING"
	IntakeStatusTextOK   IntakeStatus = "TEXT_OK"   // text obtained (native layer or OCR)
	IntakeStatusParsedOK IntakeStatus = "PARSED_OK" // fields extracted and vendor resolved
	IntakeStatusFailed   IntakeStatus = "FAILED"    // terminal failure
)
