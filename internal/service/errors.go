package service

import (
	"errors"
	"fmt"

	"github.com/socio-dl/socio-go/internal/model"
)

var (
	ErrUnsupportedPlatform   = errors.New("unsupported platform")
	ErrQuotaExceeded         = errors.New("daily quota exceeded")
	ErrQuotaStoreUnavailable = errors.New("quota store unavailable")
	ErrServerBusy            = errors.New("all job slots are busy")

	ErrJobFailed        = errors.New("job failed")
	ErrExtractionFailed = errors.New("metadata extraction failed")
	ErrDownloadFailed   = errors.New("download failed")
	ErrUploadFailed     = errors.New("upload failed")

	// ErrNoArtifact and ErrAmbiguousArtifact are download failures detected
	// after the fetcher returned successfully.
	ErrNoArtifact        = fmt.Errorf("%w: no file produced", ErrDownloadFailed)
	ErrAmbiguousArtifact = fmt.Errorf("%w: more than one candidate file", ErrDownloadFailed)

	ErrPersistenceFailed = errors.New("persisting job record failed")
)

// QuotaExceededError carries the rejected decision so callers can report
// when the quota resets.
type QuotaExceededError struct {
	Decision model.QuotaDecision
	Max      int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily download limit reached (%d downloads per day)", e.Max)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// JobError is returned for any failure inside an orchestration run. Kind is
// one of ErrExtractionFailed, ErrDownloadFailed (or its children), ErrUploadFailed.
type JobError struct {
	JobID   string
	Kind    error
	Cause   error
	Message string
}

func (e *JobError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("job %s: %s", e.JobID, e.Message)
	}
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Message, e.Cause)
}

func (e *JobError) Unwrap() []error {
	errs := []error{ErrJobFailed, e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Code is the stable client-facing error code for the failure kind.
func (e *JobError) Code() string {
	switch {
	case errors.Is(e.Kind, ErrExtractionFailed):
		return "EXTRACTION_FAILED"
	case errors.Is(e.Kind, ErrDownloadFailed):
		return "DOWNLOAD_FAILED"
	case errors.Is(e.Kind, ErrUploadFailed):
		return "UPLOAD_FAILED"
	default:
		return "JOB_FAILED"
	}
}

func newJobError(jobID string, kind, cause error, message string) *JobError {
	return &JobError{JobID: jobID, Kind: kind, Cause: cause, Message: message}
}
