package model

import "time"

// DownloadStatus is the outcome of a single download job.
type DownloadStatus int

const (
	// DownloadStatusDownloaded means the file was transferred in this run.
	DownloadStatusDownloaded DownloadStatus = iota

	// DownloadStatusExisting means the destination already existed and no
	// request was made.
	DownloadStatusExisting

	// DownloadStatusFailed means the transfer failed; no file was left at
	// the destination.
	DownloadStatusFailed

	// DownloadStatusPlanned means the job was only recorded (dry run).
	DownloadStatusPlanned
)

// String returns the status name.
func (s DownloadStatus) String() string {
	switch s {
	case DownloadStatusDownloaded:
		return "downloaded"
	case DownloadStatusExisting:
		return "existing"
	case DownloadStatusFailed:
		return "failed"
	case DownloadStatusPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// ParseDownloadStatus converts a stored status name back to a DownloadStatus.
func ParseDownloadStatus(s string) DownloadStatus {
	switch s {
	case "downloaded":
		return DownloadStatusDownloaded
	case "existing":
		return DownloadStatusExisting
	case "planned":
		return DownloadStatusPlanned
	default:
		return DownloadStatusFailed
	}
}

// MarshalText stores the status by name in JSON reports.
func (s DownloadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *DownloadStatus) UnmarshalText(text []byte) error {
	*s = ParseDownloadStatus(string(text))
	return nil
}

// JobKind tells what a download job carries.
type JobKind string

const (
	// JobKindVideo is a resolved lesson video.
	JobKindVideo JobKind = "video"
	// JobKindFile is a lesson attachment.
	JobKindFile JobKind = "file"
)

// Job is one file to fetch into one destination path.
type Job struct {
	Kind JobKind `json:"kind"`
	URL  string  `json:"url"`
	Path string  `json:"path"`
}

// DownloadResult records what happened to a Job.
type DownloadResult struct {
	Job    Job            `json:"job"`
	Status DownloadStatus `json:"status"`

	// Bytes is the size of the transferred file. Zero unless downloaded.
	Bytes int64 `json:"bytes,omitempty"`

	// SHA3 is the hex SHA3-256 digest of the transferred file.
	SHA3 string `json:"sha3,omitempty"`

	// Error holds the failure message for failed jobs.
	Error string `json:"error,omitempty"`

	FinishedAt time.Time `json:"finished_at"`
}
